package adapterref

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nomercy-sim/nomercy/internal/jsonval"
	"github.com/nomercy-sim/nomercy/internal/protocol"
)

type scriptedSystem struct {
	calls []protocol.CmdKind
}

func (s *scriptedSystem) Init(cmd protocol.Command) protocol.Response {
	s.calls = append(s.calls, protocol.CmdInit)
	ok := true
	return protocol.Response{Ok: &ok}
}

func (s *scriptedSystem) Apply(cmd protocol.Command) protocol.Response {
	s.calls = append(s.calls, protocol.CmdApply)
	ok := true
	return protocol.Response{Ok: &ok}
}

func (s *scriptedSystem) Crash() protocol.Response {
	s.calls = append(s.calls, protocol.CmdCrash)
	ok := true
	return protocol.Response{Ok: &ok, State: jsonval.Object{}}
}

func (s *scriptedSystem) Restore(cmd protocol.Command) protocol.Response {
	s.calls = append(s.calls, protocol.CmdRestore)
	ok := true
	return protocol.Response{Ok: &ok}
}

func (s *scriptedSystem) Observe() protocol.Response {
	s.calls = append(s.calls, protocol.CmdObserve)
	return protocol.Response{Observation: jsonval.Object{}}
}

func (s *scriptedSystem) Shutdown() protocol.Response {
	s.calls = append(s.calls, protocol.CmdShutdown)
	ok := true
	return protocol.Response{Ok: &ok}
}

func TestServeDispatchesEachLineAndStopsAtShutdown(t *testing.T) {
	input := strings.Join([]string{
		`{"version":"1.0","cmd":"init","config":{}}`,
		`{"version":"1.0","cmd":"apply","op":{}}`,
		`{"version":"1.0","cmd":"observe"}`,
		`{"version":"1.0","cmd":"shutdown"}`,
	}, "\n") + "\n"

	sys := &scriptedSystem{}
	var out bytes.Buffer
	if err := Serve(strings.NewReader(input), &out, sys); err != nil {
		t.Fatal(err)
	}

	want := []protocol.CmdKind{protocol.CmdInit, protocol.CmdApply, protocol.CmdObserve, protocol.CmdShutdown}
	if len(sys.calls) != len(want) {
		t.Fatalf("got %v calls, want %v", sys.calls, want)
	}
	for i := range want {
		if sys.calls[i] != want[i] {
			t.Fatalf("call %d: got %s, want %s", i, sys.calls[i], want[i])
		}
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 response lines, got %d: %q", len(lines), out.String())
	}
}

func TestServeRepliesFatalOnMalformedLine(t *testing.T) {
	sys := &scriptedSystem{}
	var out bytes.Buffer
	if err := Serve(strings.NewReader("not json\n"), &out, sys); err != nil {
		t.Fatal(err)
	}
	v, err := jsonval.Parse(bytes.TrimSpace(out.Bytes()), jsonval.Limits{})
	if err != nil {
		t.Fatal(err)
	}
	obj := v.(jsonval.Object)
	if obj["fatal"] != jsonval.Bool(true) {
		t.Fatalf("expected fatal error response, got %+v", obj)
	}
}
