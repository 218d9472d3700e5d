// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockListener is a hand-written go.uber.org/mock-style mock of Listener,
// written in the shape `mockgen` would generate for this interface.
type MockListener struct {
	ctrl     *gomock.Controller
	recorder *MockListenerMockRecorder
}

type MockListenerMockRecorder struct {
	mock *MockListener
}

func NewMockListener(ctrl *gomock.Controller) *MockListener {
	m := &MockListener{ctrl: ctrl}
	m.recorder = &MockListenerMockRecorder{m}
	return m
}

func (m *MockListener) EXPECT() *MockListenerMockRecorder {
	return m.recorder
}

func (m *MockListener) OnEvent(kind EventKind, p *Pool) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "OnEvent", kind, p)
}

func (mr *MockListenerMockRecorder) OnEvent(kind, p interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "OnEvent", reflect.TypeOf((*MockListener)(nil).OnEvent), kind, p)
}
