package render

import (
	"math"
	"testing"

	"go-sfplayer/synth"
)

func within(got, want, eps float64) bool {
	return math.Abs(got-want) <= eps
}

func TestTimelineValue(t *testing.T) {
	t.Run("before_first_point_uses_default", func(t *testing.T) {
		tl := &timeline{}
		tl.insert(autoPoint{at: 1, value: 5})
		if got := tl.value(0.5, 2); got != 2 {
			t.Errorf("got %v, want default 2", got)
		}
	})
	t.Run("set_is_a_step", func(t *testing.T) {
		tl := &timeline{}
		tl.insert(autoPoint{at: 0, value: 1})
		tl.insert(autoPoint{at: 1, value: 3})
		if got := tl.value(0.999, 0); got != 1 {
			t.Errorf("got %v, want 1 before the step", got)
		}
		if got := tl.value(1, 0); got != 3 {
			t.Errorf("got %v, want 3 at the step", got)
		}
	})
	t.Run("ramp_interpolates", func(t *testing.T) {
		tl := &timeline{}
		tl.insert(autoPoint{at: 0, value: 0})
		tl.insert(autoPoint{at: 2, value: 1, ramp: true})
		if got := tl.value(1, 0); !within(got, 0.5, 1e-12) {
			t.Errorf("got %v, want 0.5 mid-ramp", got)
		}
		if got := tl.value(3, 0); got != 1 {
			t.Errorf("got %v, want 1 after the ramp", got)
		}
	})
	t.Run("cancel_drops_later_points", func(t *testing.T) {
		tl := &timeline{}
		tl.insert(autoPoint{at: 0, value: 1})
		tl.insert(autoPoint{at: 2, value: 0, ramp: true})
		tl.cancel(1.5)
		if got := tl.value(3, 0); got != 1 {
			t.Errorf("got %v, want 1 after cancelling the ramp", got)
		}
	})
}

func TestConstantThroughGain(t *testing.T) {
	g := NewGraph(100)
	c := g.CreateConstant(1)
	gn := g.CreateGain(0.5)
	g.Connect(c, gn, synth.ParamInput)
	g.Connect(gn, g.Destination(), synth.ParamInput)
	g.Start(c, 0)

	out := make([][2]float32, 4)
	g.Process(out)
	for i, fr := range out {
		if !within(float64(fr[0]), 0.5, 1e-6) || !within(float64(fr[1]), 0.5, 1e-6) {
			t.Fatalf("frame %d: got %v, want 0.5 on both channels", i, fr)
		}
	}
	if now := g.Now(); !within(now, 0.04, 1e-12) {
		t.Errorf("clock: got %v, want 0.04", now)
	}
}

func TestGainRampInterpolatesPerFrame(t *testing.T) {
	g := NewGraph(100)
	c := g.CreateConstant(1)
	gn := g.CreateGain(0)
	g.Connect(c, gn, synth.ParamInput)
	g.Connect(gn, g.Destination(), synth.ParamInput)
	g.Start(c, 0)
	g.SetValueAtTime(gn, synth.ParamGain, 0, 0)
	g.LinearRampToValueAtTime(gn, synth.ParamGain, 1, 0.1)

	out := make([][2]float32, 12)
	g.Process(out)
	for k := 0; k <= 10; k++ {
		want := float64(k) / 10
		if !within(float64(out[k][0]), want, 1e-6) {
			t.Errorf("frame %d: got %v, want %v", k, out[k][0], want)
		}
	}
	if !within(float64(out[11][0]), 1, 1e-6) {
		t.Errorf("after ramp: got %v, want 1", out[11][0])
	}
}

func sourceTo(g *Graph, data []float32, rate float64) (synth.NodeID, synth.NodeID) {
	buf := g.CreateBuffer(1, len(data), rate)
	g.FillBuffer(buf, 0, data)
	src := g.CreateSource(buf)
	g.Connect(src, g.Destination(), synth.ParamInput)
	return src, buf
}

func TestSourcePlaysBufferOnce(t *testing.T) {
	g := NewGraph(100)
	src, _ := sourceTo(g, []float32{0.1, 0.2, 0.3, 0.4}, 100)
	g.Start(src, 0)

	out := make([][2]float32, 6)
	g.Process(out)
	want := []float64{0.1, 0.2, 0.3, 0.4, 0, 0}
	for i, w := range want {
		if !within(float64(out[i][0]), w, 1e-6) {
			t.Errorf("frame %d: got %v, want %v", i, out[i][0], w)
		}
	}
}

func TestSourceLoopWrapsBetweenPoints(t *testing.T) {
	g := NewGraph(100)
	src, _ := sourceTo(g, []float32{0.1, 0.2, 0.3, 0.4}, 100)
	g.SetLoop(src, 1.0/100, 3.0/100) // frames 1 to 3
	g.Start(src, 0)

	out := make([][2]float32, 7)
	g.Process(out)
	want := []float64{0.1, 0.2, 0.3, 0.2, 0.3, 0.2, 0.3}
	for i, w := range want {
		if !within(float64(out[i][0]), w, 1e-6) {
			t.Errorf("frame %d: got %v, want %v", i, out[i][0], w)
		}
	}
}

func TestDegenerateLoopPlaysOnce(t *testing.T) {
	g := NewGraph(100)
	src, _ := sourceTo(g, []float32{0.1, 0.2, 0.3, 0.4}, 100)
	g.SetLoop(src, 0, 0)
	g.Start(src, 0)

	out := make([][2]float32, 6)
	g.Process(out)
	want := []float64{0.1, 0.2, 0.3, 0.4, 0, 0}
	for i, w := range want {
		if !within(float64(out[i][0]), w, 1e-6) {
			t.Errorf("frame %d: got %v, want %v", i, out[i][0], w)
		}
	}
}

func TestSourceDetuneModulation(t *testing.T) {
	g := NewGraph(100)
	data := make([]float32, 8)
	for i := range data {
		data[i] = float32(i)
	}
	src, _ := sourceTo(g, data, 100)
	g.SetValueAtTime(src, synth.ParamRate, 1, 0)
	g.Start(src, 0)

	// An octave of detune through a depth gain doubles the advance.
	c := g.CreateConstant(1)
	depth := g.CreateGain(1200)
	g.Connect(c, depth, synth.ParamInput)
	g.Connect(depth, src, synth.ParamDetune)
	g.Start(c, 0)

	out := make([][2]float32, 5)
	g.Process(out)
	want := []float64{0, 2, 4, 6, 0}
	for i, w := range want {
		if !within(float64(out[i][0]), w, 1e-6) {
			t.Errorf("frame %d: got %v, want %v", i, out[i][0], w)
		}
	}
}

func TestStopSilencesSource(t *testing.T) {
	g := NewGraph(100)
	src, _ := sourceTo(g, []float32{0.5, 0.5, 0.5, 0.5}, 100)
	g.Start(src, 0)
	g.Stop(src, 0.02) // two frames

	out := make([][2]float32, 4)
	g.Process(out)
	if out[1][0] == 0 {
		t.Error("source silent before its stop time")
	}
	if out[2][0] != 0 || out[3][0] != 0 {
		t.Errorf("source audible after stop: %v %v", out[2][0], out[3][0])
	}
}

func TestDelayedStartStaysSilent(t *testing.T) {
	g := NewGraph(100)
	src, _ := sourceTo(g, []float32{0.5, 0.5}, 100)
	g.Start(src, 0.02)

	out := make([][2]float32, 4)
	g.Process(out)
	if out[0][0] != 0 || out[1][0] != 0 {
		t.Error("source audible before its start time")
	}
	if out[2][0] == 0 {
		t.Error("source silent after its start time")
	}
}

func TestReleasedNodesGoSilent(t *testing.T) {
	g := NewGraph(100)
	c := g.CreateConstant(1)
	g.Connect(c, g.Destination(), synth.ParamInput)
	g.Start(c, 0)

	out := make([][2]float32, 2)
	g.Process(out)
	if out[0][0] != 1 {
		t.Fatalf("got %v, want 1 before release", out[0][0])
	}

	g.Release(c)
	g.Process(out)
	if out[0][0] != 0 {
		t.Errorf("got %v, want silence after release", out[0][0])
	}
}

func TestPannerEqualPower(t *testing.T) {
	cases := []struct {
		name  string
		pan   float64
		wantL float64
		wantR float64
	}{
		{"center", 0, math.Cos(math.Pi / 4), math.Sin(math.Pi / 4)},
		{"hard_left", -1, 1, 0},
		{"hard_right", 1, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGraph(100)
			c := g.CreateConstant(1)
			p := g.CreatePanner(tc.pan)
			g.Connect(c, p, synth.ParamInput)
			g.Connect(p, g.Destination(), synth.ParamInput)
			g.Start(c, 0)

			out := make([][2]float32, 1)
			g.Process(out)
			if !within(float64(out[0][0]), tc.wantL, 1e-6) {
				t.Errorf("left: got %v, want %v", out[0][0], tc.wantL)
			}
			if !within(float64(out[0][1]), tc.wantR, 1e-6) {
				t.Errorf("right: got %v, want %v", out[0][1], tc.wantR)
			}
		})
	}
}

func TestLowpassPassesDC(t *testing.T) {
	g := NewGraph(1000)
	c := g.CreateConstant(1)
	f := g.CreateFilter(100, 1)
	g.Connect(c, f, synth.ParamInput)
	g.Connect(f, g.Destination(), synth.ParamInput)
	g.Start(c, 0)

	out := make([][2]float32, 2000)
	g.Process(out)
	// After settling, DC passes at unity.
	if got := float64(out[1999][0]); !within(got, 1, 1e-3) {
		t.Errorf("DC response: got %v, want about 1", got)
	}
}
