package domain

import "testing"

func TestScoreNormalized(t *testing.T) {
	if got := CentipawnScore(120).Normalized(); got != 120 {
		t.Fatalf("cp 120 = %d", got)
	}
	if got := CentipawnScore(-80).Normalized(); got != -80 {
		t.Fatalf("cp -80 = %d", got)
	}

	// Mate scores always dominate any centipawn score, and a shorter
	// mate ranks above a longer one.
	m2 := MateScore(2).Normalized()
	m9 := MateScore(9).Normalized()
	if m2 <= m9 {
		t.Fatalf("mate 2 (%d) <= mate 9 (%d)", m2, m9)
	}
	if m9 <= CentipawnScore(40000).Normalized() {
		t.Fatalf("mate 9 (%d) not above clamped cp", m9)
	}

	mm2 := MateScore(-2).Normalized()
	mm9 := MateScore(-9).Normalized()
	if mm2 >= mm9 {
		t.Fatalf("mated in 2 (%d) >= mated in 9 (%d)", mm2, mm9)
	}
	if mm9 >= CentipawnScore(-40000).Normalized() {
		t.Fatalf("mated in 9 (%d) not below clamped cp", mm9)
	}

	// Extreme cp values clamp below the mate band.
	if got := CentipawnScore(100000).Normalized(); got != 29000 {
		t.Fatalf("clamp high = %d", got)
	}
	if got := CentipawnScore(-100000).Normalized(); got != -29000 {
		t.Fatalf("clamp low = %d", got)
	}
}

func TestScoreKinds(t *testing.T) {
	if !MateScore(3).IsMate() || CentipawnScore(500).IsMate() {
		t.Fatal("IsMate misclassifies")
	}
	if !UnavailableScore().Unavailable {
		t.Fatal("unavailable sentinel lost")
	}
	if CentipawnScore(0).Unavailable {
		t.Fatal("zero score marked unavailable")
	}
}

func TestMoverAt(t *testing.T) {
	if MoverAt(1) != White || MoverAt(2) != Black || MoverAt(7) != White {
		t.Fatal("ply to mover mapping broken")
	}
}

func TestReportRender(t *testing.T) {
	rep := Report{Sections: []Section{
		{Title: "A", Body: "first"},
		{Body: "second"},
	}}
	want := "A\nfirst\n\nsecond"
	if got := rep.Render(); got != want {
		t.Fatalf("render = %q", got)
	}
	if !(Report{}).Empty() || rep.Empty() {
		t.Fatal("Empty misreports")
	}
}
