// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package erd

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewAttributes(t *testing.T) {
	tt := []struct {
		domain Domain
		socket uint32
	}{
		{DomainPackage, 0},
		{DomainUncore, 0},
		{DomainCores, 1},
		{DomainDRAM, 3},
	}

	for _, tc := range tt {
		t.Run(tc.domain.String(), func(t *testing.T) {
			m := newConfiguredMock(tc.domain, tc.socket)
			m.On("AttrDestroy", testAttrRef).Return(StatusSuccess).Once()

			attr, err := NewAttributes(m, tc.domain, tc.socket)
			require.NoError(t, err)
			assert.Equal(t, tc.domain, attr.Domain())
			assert.Equal(t, tc.socket, attr.Socket())
			assert.False(t, attr.Destroyed())

			attr.Destroy()
			assert.True(t, attr.Destroyed())
			m.AssertExpectations(t)
		})
	}
}

func TestNewAttributesOrder(t *testing.T) {
	m := &mockNative{}
	var calls []string
	m.On("AttrCreate", mock.Anything).Return(testAttrRef, StatusSuccess).
		Run(func(mock.Arguments) { calls = append(calls, "create") })
	m.On("AttrSetDomain", testAttrRef, DomainDRAM).Return(StatusSuccess).
		Run(func(mock.Arguments) { calls = append(calls, "domain") })
	m.On("AttrSetSocket", testAttrRef, uint32(2)).Return(StatusSuccess).
		Run(func(mock.Arguments) { calls = append(calls, "socket") })
	m.On("AttrDestroy", testAttrRef).Return(StatusSuccess).
		Run(func(mock.Arguments) { calls = append(calls, "destroy") })

	attr, err := NewAttributes(m, DomainDRAM, 2)
	require.NoError(t, err)
	attr.Destroy()

	assert.Equal(t, []string{"create", "domain", "socket", "destroy"}, calls)
}

func TestNewAttributesCreateFailure(t *testing.T) {
	m := &mockNative{}
	m.On("AttrCreate", mock.Anything).
		Return(AttrRef(0), StatusAllocError).
		Run(fillDescriptor(0, "Error allocating memory for attributes"))

	attr, err := NewAttributes(m, DomainPackage, 0)
	require.Error(t, err)
	assert.Nil(t, attr)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, StatusAllocError, e.Status)
	assert.True(t, e.HasDetail)
	assert.Equal(t, "Error allocating memory for attributes", e.Detail)
	assert.Equal(t, "create attributes", e.Op)

	// teardown scheduled before creation completed must not reach the native side
	attr.Destroy()
	m.AssertNotCalled(t, "AttrDestroy", mock.Anything)
	m.AssertNotCalled(t, "AttrSetDomain", mock.Anything, mock.Anything)
}

func TestNewAttributesSetterFailure(t *testing.T) {
	t.Run("set socket fails", func(t *testing.T) {
		m := &mockNative{}
		m.On("AttrCreate", mock.Anything).Return(testAttrRef, StatusSuccess).Once()
		m.On("AttrSetDomain", testAttrRef, DomainPackage).Return(StatusSuccess).Once()
		m.On("AttrSetSocket", testAttrRef, uint32(7)).Return(StatusInvalidArgument).Once()
		m.On("AttrDestroy", testAttrRef).Return(StatusSuccess).Once()

		attr, err := NewAttributes(m, DomainPackage, 7)
		require.Error(t, err)
		assert.Equal(t, StatusInvalidArgument, StatusOf(err))

		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "set socket", e.Op)
		assert.False(t, e.HasDetail)

		assert.NotPanics(t, attr.Destroy)
		m.AssertExpectations(t)
		m.AssertNumberOfCalls(t, "AttrDestroy", 1)
	})

	t.Run("set domain fails", func(t *testing.T) {
		m := &mockNative{}
		m.On("AttrCreate", mock.Anything).Return(testAttrRef, StatusSuccess).Once()
		m.On("AttrSetDomain", testAttrRef, Domain(42)).Return(StatusInvalidArgument).Once()
		m.On("AttrDestroy", testAttrRef).Return(StatusSuccess).Once()

		attr, err := NewAttributes(m, Domain(42), 0)
		require.Error(t, err)
		assert.Equal(t, StatusInvalidArgument, StatusOf(err))
		assert.Contains(t, err.Error(), "set domain")

		attr.Destroy()
		m.AssertNotCalled(t, "AttrSetSocket", mock.Anything, mock.Anything)
		m.AssertNumberOfCalls(t, "AttrDestroy", 1)
	})
}

func TestAttributesDestroyIdempotent(t *testing.T) {
	m := newConfiguredMock(DomainPackage, 0)
	m.On("AttrDestroy", testAttrRef).Return(StatusSuccess).Once()

	attr, err := NewAttributes(m, DomainPackage, 0)
	require.NoError(t, err)

	attr.Destroy()
	attr.Destroy()
	attr.Destroy()
	m.AssertNumberOfCalls(t, "AttrDestroy", 1)
}

func TestAttributesDestroyFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m := newConfiguredMock(DomainCores, 0)
	m.On("AttrDestroy", testAttrRef).Return(StatusSystemError).Once()

	attr, err := NewAttributes(m, DomainCores, 0, WithLogger(logger))
	require.NoError(t, err)

	assert.NotPanics(t, attr.Destroy)
	assert.True(t, attr.Destroyed())
	assert.Contains(t, buf.String(), "Error destroying native resource")
	assert.Contains(t, buf.String(), "kind=attributes")
	assert.Contains(t, buf.String(), "status=system_error")

	// a failed destroy is final; it is not attempted again
	attr.Destroy()
	m.AssertNumberOfCalls(t, "AttrDestroy", 1)
}

func TestAttributesZeroValue(t *testing.T) {
	var nilAttr *Attributes
	assert.NotPanics(t, nilAttr.Destroy)
	assert.True(t, nilAttr.Destroyed())

	zero := &Attributes{}
	assert.NotPanics(t, zero.Destroy)
	assert.True(t, zero.Destroyed())
}

func TestNewAttributesNilNative(t *testing.T) {
	attr, err := NewAttributes(nil, DomainPackage, 0)
	assert.Nil(t, attr)
	assert.ErrorIs(t, err, errNilNative)
	assert.Equal(t, StatusInvalidArgument, StatusOf(err))
}

func TestNewAttributesDescriptorSize(t *testing.T) {
	m := &mockNative{}
	m.On("AttrCreate", mock.Anything).
		Return(AttrRef(0), StatusAllocError).
		Run(fillDescriptor(0, "this message does not fit"))

	_, err := NewAttributes(m, DomainPackage, 0, WithDescriptorSize(5))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "this", e.Detail)
}
