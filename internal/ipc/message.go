// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc carries measurement requests between erd clients and the daemon
// over a unix stream socket using fixed size little-endian messages.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sustainable-computing-io/erd/pkg/erd"
)

// ErrBadMessage is returned when a message cannot be decoded
var ErrBadMessage = errors.New("bad message")

// Operation is the request type carried in every message
type Operation uint32

const (
	OpObtainReadings Operation = iota
	OpSubtract
)

func (o Operation) String() string {
	switch o {
	case OpObtainReadings:
		return "obtain_readings"
	case OpSubtract:
		return "subtract"
	default:
		return fmt.Sprintf("operation(%d)", uint32(o))
	}
}

// ResponseStatus reports whether the daemon served a request
type ResponseStatus uint32

const (
	ResponseSuccess ResponseStatus = iota
	ResponseError
)

const (
	readingsSize = 20
	// RequestSize is the encoded size of a Request
	RequestSize = 4 + 2*readingsSize
	// ResponseSize is the encoded size of a Response
	ResponseSize = 4 + 4 + readingsSize
)

// Request asks the daemon for a sample or for LHS - RHS
type Request struct {
	Op  Operation
	LHS erd.NativeReadings
	RHS erd.NativeReadings
}

// Response answers exactly one Request
type Response struct {
	Op       Operation
	Status   ResponseStatus
	Readings erd.NativeReadings
}

func putReadings(b []byte, r erd.NativeReadings) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(r.Time))
	binary.LittleEndian.PutUint64(b[8:16], r.Energy)
	binary.LittleEndian.PutUint16(b[16:18], uint16(r.TUnit))
	binary.LittleEndian.PutUint16(b[18:20], uint16(r.EUnit))
}

func readings(b []byte) (erd.NativeReadings, error) {
	r := erd.NativeReadings{
		Time:   int64(binary.LittleEndian.Uint64(b[0:8])),
		Energy: binary.LittleEndian.Uint64(b[8:16]),
		TUnit:  erd.TimeUnit(binary.LittleEndian.Uint16(b[16:18])),
		EUnit:  erd.EnergyUnit(binary.LittleEndian.Uint16(b[18:20])),
	}
	if !r.TUnit.Valid() {
		return erd.NativeReadings{}, fmt.Errorf("%w: time unit %d", ErrBadMessage, r.TUnit)
	}
	if !r.EUnit.Valid() {
		return erd.NativeReadings{}, fmt.Errorf("%w: energy unit %d", ErrBadMessage, r.EUnit)
	}
	return r, nil
}

func operation(b []byte) (Operation, error) {
	op := Operation(binary.LittleEndian.Uint32(b[0:4]))
	if op != OpObtainReadings && op != OpSubtract {
		return 0, fmt.Errorf("%w: unknown %s", ErrBadMessage, op)
	}
	return op, nil
}

// MarshalBinary encodes r into RequestSize bytes
func (r Request) MarshalBinary() ([]byte, error) {
	b := make([]byte, RequestSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(r.Op))
	putReadings(b[4:24], r.LHS)
	putReadings(b[24:44], r.RHS)
	return b, nil
}

// UnmarshalBinary decodes a request, validating the operation and unit tags
func (r *Request) UnmarshalBinary(b []byte) error {
	if len(b) != RequestSize {
		return fmt.Errorf("%w: request of %d bytes", ErrBadMessage, len(b))
	}
	op, err := operation(b)
	if err != nil {
		return err
	}
	lhs, err := readings(b[4:24])
	if err != nil {
		return err
	}
	rhs, err := readings(b[24:44])
	if err != nil {
		return err
	}

	*r = Request{Op: op, LHS: lhs, RHS: rhs}
	return nil
}

// MarshalBinary encodes r into ResponseSize bytes
func (r Response) MarshalBinary() ([]byte, error) {
	b := make([]byte, ResponseSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(r.Op))
	binary.LittleEndian.PutUint32(b[4:8], uint32(r.Status))
	putReadings(b[8:28], r.Readings)
	return b, nil
}

// UnmarshalBinary decodes a response, validating the operation, status and unit tags
func (r *Response) UnmarshalBinary(b []byte) error {
	if len(b) != ResponseSize {
		return fmt.Errorf("%w: response of %d bytes", ErrBadMessage, len(b))
	}
	op, err := operation(b)
	if err != nil {
		return err
	}
	status := ResponseStatus(binary.LittleEndian.Uint32(b[4:8]))
	if status != ResponseSuccess && status != ResponseError {
		return fmt.Errorf("%w: status %d", ErrBadMessage, status)
	}
	data, err := readings(b[8:28])
	if err != nil {
		return err
	}

	*r = Response{Op: op, Status: status, Readings: data}
	return nil
}
