package diff

import "testing"

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		before      string
		after       string
		wantChanged bool
	}{
		{"identical", "美品のTシャツです。", "美品のTシャツです。", false},
		{"casual rewrite", "美品のTシャツです。", "めっちゃキレイなTシャツだよ！", true},
		{"append", "サイズはMです。", "サイズはMです。着丈70cm。", true},
		{"from empty", "", "新しい説明", true},
		{"to empty", "古い説明", "", true},
		{"both empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Compute(tt.before, tt.after)

			if got := Changed(segs); got != tt.wantChanged {
				t.Errorf("Changed() = %v, want %v (%+v)", got, tt.wantChanged, segs)
			}
			if got := Before(segs); got != tt.before {
				t.Errorf("Before() = %q, want %q", got, tt.before)
			}
			if got := After(segs); got != tt.after {
				t.Errorf("After() = %q, want %q", got, tt.after)
			}
			for _, s := range segs {
				if s.Text == "" {
					t.Error("empty segment returned")
				}
			}
		})
	}
}

func TestStats(t *testing.T) {
	segs := Compute("サイズはMです。", "サイズはLです。")
	ins, del := Stats(segs)
	if ins != 1 || del != 1 {
		t.Errorf("Stats() = +%d -%d, want +1 -1 (%+v)", ins, del, segs)
	}

	segs = Compute("サイズはMです。", "サイズはMです。着丈70cm。")
	ins, del = Stats(segs)
	if ins != 7 || del != 0 {
		t.Errorf("Stats() = +%d -%d, want +7 -0 (%+v)", ins, del, segs)
	}
}

func TestOpString(t *testing.T) {
	for op, want := range map[Op]string{Equal: "equal", Insert: "insert", Delete: "delete"} {
		if got := op.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", op, got, want)
		}
	}
}
