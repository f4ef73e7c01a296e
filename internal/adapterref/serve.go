// Package adapterref hosts the shared stdin/stdout protocol loop used by
// the bundled reference adapters (flake, flakysessions): it decodes one
// command line at a time, dispatches to a System, and encodes the
// response, so each reference adapter only implements the System
// interface's six lifecycle methods.
package adapterref

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nomercy-sim/nomercy/internal/protocol"
)

// System is the narrow interface a reference adapter implements; Serve
// drives it through the wire protocol.
type System interface {
	Init(config protocol.Command) protocol.Response
	Apply(cmd protocol.Command) protocol.Response
	Crash() protocol.Response
	Restore(cmd protocol.Command) protocol.Response
	Observe() protocol.Response
	Shutdown() protocol.Response
}

// Serve reads one command per line from r, dispatches it to sys, and
// writes the encoded response to w, until r is exhausted or a shutdown
// command completes.
func Serve(r io.Reader, w io.Writer, sys System) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), protocol.MaxLineBytes+1)

	for scanner.Scan() {
		line := scanner.Bytes()
		cmd, err := protocol.DecodeCommand(line)
		if err != nil {
			resp := protocol.Response{Version: "", Error: strPtr(err.Error()), Fatal: true}
			if err := writeResponse(w, resp); err != nil {
				return err
			}
			continue
		}

		var resp protocol.Response
		switch cmd.Cmd {
		case protocol.CmdInit:
			resp = sys.Init(*cmd)
		case protocol.CmdApply:
			resp = sys.Apply(*cmd)
		case protocol.CmdCrash:
			resp = sys.Crash()
		case protocol.CmdRestore:
			resp = sys.Restore(*cmd)
		case protocol.CmdObserve:
			resp = sys.Observe()
		case protocol.CmdShutdown:
			resp = sys.Shutdown()
			resp.Version = cmd.Version
			if err := writeResponse(w, resp); err != nil {
				return err
			}
			return nil
		}
		resp.Version = cmd.Version
		if err := writeResponse(w, resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("adapterref: read: %w", err)
	}
	return nil
}

func writeResponse(w io.Writer, resp protocol.Response) error {
	line, err := protocol.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("adapterref: encode: %w", err)
	}
	_, err = w.Write(line)
	return err
}

func strPtr(s string) *string { return &s }
