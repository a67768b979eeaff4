// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrapf(err, "id=%s", "a")
	if wrapped == nil {
		t.Fatal("Wrapf(err, ...) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestSentinels(t *testing.T) {
	if !errors.Is(ErrNotFound, ErrNotFound) {
		t.Error("ErrNotFound should be Is ErrNotFound")
	}
	if !errors.Is(ErrInvalidArg, ErrInvalidArg) {
		t.Error("ErrInvalidArg should be Is ErrInvalidArg")
	}
}

func TestNetworkErrorCarriesLastError(t *testing.T) {
	last := errors.New("dial tcp: connection refused")
	err := &NetworkError{Endpoint: "POST /sod", Attempts: 3, Err: last}
	if !errors.Is(err, last) {
		t.Error("NetworkError should unwrap to the last raw error")
	}
	want := "network: POST /sod failed after 3 attempts: dial tcp: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestClassifiers(t *testing.T) {
	cfg := NewConfiguration("unknown org %q", "acme")
	if !IsConfiguration(cfg) {
		t.Errorf("IsConfiguration(%v) = false", cfg)
	}
	if IsNetwork(cfg) || IsSessionNotFound(cfg) {
		t.Error("configuration error misclassified")
	}

	net := Wrap(&NetworkError{Endpoint: "POST /heartbeat", Attempts: 3, Err: fmt.Errorf("timeout")}, "heartbeat")
	if !IsNetwork(net) {
		t.Error("IsNetwork should see through wrapping")
	}

	if !IsSessionNotFound(&SessionNotFoundError{SessionID: "sess-1"}) {
		t.Error("IsSessionNotFound(SessionNotFoundError) = false")
	}
	if !IsSessionNotFound(&SessionNotActiveError{}) {
		t.Error("IsSessionNotFound should cover not-active")
	}
}

func TestConfigurationMessage(t *testing.T) {
	err := NewConfiguration("missing credential")
	if err.Error() != "configuration: missing credential" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
