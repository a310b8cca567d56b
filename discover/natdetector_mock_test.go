package discover

// Hand-authored in the shape `mockgen` produces for the NatDetector
// interface (a single-method collaborator, the natural fit for
// call-count expectations rather than a stateful fake).

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockNatDetector is a mock of the NatDetector interface.
type MockNatDetector struct {
	ctrl     *gomock.Controller
	recorder *MockNatDetectorMockRecorder
}

// MockNatDetectorMockRecorder is the mock recorder for MockNatDetector.
type MockNatDetectorMockRecorder struct {
	mock *MockNatDetector
}

// NewMockNatDetector creates a new mock instance.
func NewMockNatDetector(ctrl *gomock.Controller) *MockNatDetector {
	mock := &MockNatDetector{ctrl: ctrl}
	mock.recorder = &MockNatDetectorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockNatDetector) EXPECT() *MockNatDetectorMockRecorder {
	return m.recorder
}

// IsGlobal mocks base method.
func (m *MockNatDetector) IsGlobal() bool {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IsGlobal")
	ret0, _ := ret[0].(bool)
	return ret0
}

// IsGlobal indicates an expected call of IsGlobal.
func (mr *MockNatDetectorMockRecorder) IsGlobal() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IsGlobal", reflect.TypeOf((*MockNatDetector)(nil).IsGlobal))
}
