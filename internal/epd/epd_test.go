package epd

import (
	"context"
	"image"
	"image/color"
	"testing"

	"epdstats/internal/fb"
)

func TestRefreshPolicyDecide(t *testing.T) {
	t.Parallel()

	p := RefreshPolicy{FullEvery: 30}
	cases := []struct {
		update int
		forced bool
		want   Mode
	}{
		{1, false, ModeFull},
		{2, false, ModePartial},
		{29, false, ModePartial},
		{30, false, ModeFull},
		{31, false, ModePartial},
		{60, false, ModeFull},
		{7, true, ModeFull},
	}
	for _, tc := range cases {
		if got := p.Decide(tc.update, tc.forced); got != tc.want {
			t.Errorf("Decide(%d, %v) = %s, want %s", tc.update, tc.forced, got, tc.want)
		}
	}

	always := RefreshPolicy{ForceFull: true}
	if always.Decide(5, false) != ModeFull {
		t.Fatalf("ForceFull should always pick full")
	}
	never := RefreshPolicy{}
	if never.Decide(30, false) != ModePartial {
		t.Fatalf("FullEvery=0 should not schedule periodic full refreshes")
	}
}

func TestMemoryPanelStoresFrames(t *testing.T) {
	t.Parallel()

	p := NewMemoryPanel(Width, Height)
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	frame := fb.New(Width, Height)
	frame.DrawBar(2, 50, 100, 8, 50)
	if err := Push(p, ModeFull, frame); err != nil {
		t.Fatal(err)
	}
	frame.Fill(true)
	if err := Push(p, ModePartial, frame); err != nil {
		t.Fatal(err)
	}
	full, partial := p.Counts()
	if full != 1 || partial != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", full, partial)
	}
	if p.Frame().Bit(2, 50) != 1 {
		t.Fatalf("panel should hold the last (blank) frame")
	}

	// Generic images are converted pixel by pixel.
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.SetGray(10, 10, color.Gray{Y: 0})
	if err := p.Partial(img); err != nil {
		t.Fatal(err)
	}
	if p.Frame().Bit(10, 10) != 0 || p.Frame().Bit(11, 10) != 1 {
		t.Fatalf("generic image not converted correctly")
	}

	_ = p.Sleep()
	if !p.Sleeping() {
		t.Fatalf("Sleep not recorded")
	}
	_ = p.Close()
	if !p.Closed() {
		t.Fatalf("Close not recorded")
	}
}

func TestOpenRenderOnly(t *testing.T) {
	t.Parallel()

	p, err := Open(context.Background(), Options{RenderOnly: true})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if _, ok := p.(*MemoryPanel); !ok {
		t.Fatalf("render-only should give a MemoryPanel, got %T", p)
	}
	if p.Bounds() != image.Rect(0, 0, Width, Height) {
		t.Fatalf("unexpected bounds %v", p.Bounds())
	}
}
