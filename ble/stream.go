package ble

import "runtime"

// This file implements the console-facing byte stream: the flush engine that
// drains the transmit buffer into MTU-sized notifications, and the blocking
// read/write facade the application uses. The stream carries bytes, not
// messages: notification boundaries carry no meaning.
//
// All methods here run from the application context. The radio event context
// only touches the receive buffer's producer side and the wake signal.

// Flush drains buffered transmit data into at most one notification frame
// and sends it. It returns immediately when there is nothing to send.
//
// Sends are retried while the radio reports resource exhaustion. A send that
// races a disconnection (not connected, or stale handle) is swallowed: the
// data is discarded and the call succeeds. Any other send failure panics.
//
// One frame per call: draining a large backlog takes repeated calls.
func (s *Stack) Flush() {
	if s.tx.Empty() {
		return
	}

	mtu := int(s.mtu.Load())
	n := 0
	for !s.tx.Empty() {
		s.frame[n] = s.tx.Pop()
		n++
		// Send the rest in a later frame once the MTU is filled.
		if n >= mtu {
			break
		}
	}

	for {
		err := s.radio.Notify(s.Connection(), s.txChar, s.frame[:n])
		if err == nil {
			return
		}
		if isTransientSend(err) {
			// Busy-retry until the radio frees queue resources. Yield so
			// the radio context can make that progress.
			runtime.Gosched()
			continue
		}
		if isStaleSend(err) {
			return
		}
		assertRadio(err)
	}
}

// ReadByte returns the next inbound console byte, blocking until one
// arrives. While waiting it opportunistically flushes pending output, and
// when both directions are idle it parks in a low-power wait until the next
// radio event.
//
// This is the core's only suspension point and it has no timeout; callers
// needing bounded waits must poll InputEmpty instead. The returned error is
// always nil, satisfying io.ByteReader.
func (s *Stack) ReadByte() (byte, error) {
	for s.rx.Empty() {
		s.Flush()
		if s.tx.Empty() && s.rx.Empty() {
			<-s.wake
		}
	}
	return s.rx.Pop(), nil
}

// Read fills p with at least one byte, blocking like ReadByte for the first
// one and then draining whatever is already buffered. It never returns an
// error.
func (s *Stack) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c, _ := s.ReadByte()
	p[0] = c
	n := 1
	for n < len(p) && !s.rx.Empty() {
		p[n] = s.rx.Pop()
		n++
	}
	return n, nil
}

// Write queues p on the transmit buffer in FIFO order, flushing as needed
// when the buffer fills up. It blocks for as long as the peer fails to drain
// notifications; that blocking is the only backpressure signal the
// application gets. It never returns an error.
func (s *Stack) Write(p []byte) (int, error) {
	for _, c := range p {
		for s.tx.Full() {
			s.Flush()
		}
		s.tx.Push(c)
	}
	return len(p), nil
}

// InputEmpty reports whether no inbound console data is buffered. It never
// blocks.
func (s *Stack) InputEmpty() bool {
	return s.rx.Empty()
}
