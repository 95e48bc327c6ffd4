// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import (
	"github.com/stretchr/testify/mock"
)

// mockNative is a mock implementation of Native
type mockNative struct {
	mock.Mock
}

var _ Native = (*mockNative)(nil)

func (m *mockNative) AttrCreate(ed *ErrorDescriptor) (AttrRef, StatusCode) {
	args := m.Called(ed)
	return args.Get(0).(AttrRef), args.Get(1).(StatusCode)
}

func (m *mockNative) AttrSetDomain(attr AttrRef, domain Domain) StatusCode {
	args := m.Called(attr, domain)
	return args.Get(0).(StatusCode)
}

func (m *mockNative) AttrSetSocket(attr AttrRef, socket uint32) StatusCode {
	args := m.Called(attr, socket)
	return args.Get(0).(StatusCode)
}

func (m *mockNative) AttrDestroy(attr AttrRef) StatusCode {
	args := m.Called(attr)
	return args.Get(0).(StatusCode)
}

func (m *mockNative) HandleCreate(attr AttrRef, ed *ErrorDescriptor) (HandleRef, StatusCode) {
	args := m.Called(attr, ed)
	return args.Get(0).(HandleRef), args.Get(1).(StatusCode)
}

func (m *mockNative) HandleDestroy(handle HandleRef) StatusCode {
	args := m.Called(handle)
	return args.Get(0).(StatusCode)
}

func (m *mockNative) ObtainReadings(handle HandleRef, ed *ErrorDescriptor) (NativeReadings, StatusCode) {
	args := m.Called(handle, ed)
	return args.Get(0).(NativeReadings), args.Get(1).(StatusCode)
}

func (m *mockNative) SubtractReadings(handle HandleRef, lhs, rhs NativeReadings) (NativeReadings, StatusCode) {
	args := m.Called(handle, lhs, rhs)
	return args.Get(0).(NativeReadings), args.Get(1).(StatusCode)
}

// fillDescriptor returns a Run function that writes msg into the descriptor
// passed at argument index i, as the native side would
func fillDescriptor(i int, msg string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(i).(*ErrorDescriptor).Fill(msg)
	}
}

const (
	testAttrRef   AttrRef   = 0x10
	testHandleRef HandleRef = 0x20
)

// newConfiguredMock returns a mock that accepts attribute creation and
// configuration for domain and socket
func newConfiguredMock(domain Domain, socket uint32) *mockNative {
	m := &mockNative{}
	m.On("AttrCreate", mock.Anything).Return(testAttrRef, StatusSuccess).Once()
	m.On("AttrSetDomain", testAttrRef, domain).Return(StatusSuccess).Once()
	m.On("AttrSetSocket", testAttrRef, socket).Return(StatusSuccess).Once()
	return m
}
