// Package midiout streams a parsed file to hardware MIDI ports in real
// time, using the same merged timeline the synthesizer schedules from.
package midiout

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Ports returns the names of every MIDI output port.
func Ports() ([]string, error) {
	outs, err := queryPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(outs))
	for _, p := range outs {
		names = append(names, p.String())
	}
	return names, nil
}

// queryPorts lists output ports with a timeout guard; some OS MIDI
// services can hang the query.
func queryPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() { ch <- gomidi.GetOutPorts() }()
	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(3 * time.Second):
		return nil, errors.New("MIDI port query timed out")
	}
}

// Open returns a sender for the first port whose name contains name,
// case-insensitively, or for the first available port when name is
// empty. The second return is the resolved port name.
func Open(name string) (func(gomidi.Message) error, string, error) {
	outs, err := queryPorts()
	if err != nil {
		return nil, "", err
	}
	if len(outs) == 0 {
		return nil, "", errors.New("no MIDI output ports")
	}
	for _, p := range outs {
		if name == "" || strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			send, err := gomidi.SendTo(p)
			if err != nil {
				return nil, "", errors.Wrapf(err, "opening port %q", p.String())
			}
			return send, p.String(), nil
		}
	}
	return nil, "", errors.Errorf("no MIDI output port matching %q", name)
}
