package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVolumeNumber(t *testing.T) {
	tests := []struct {
		title string
		want  int
		ok    bool
	}{
		{"キングダム 77", 77, true},
		{"キングダム 2020", 0, false},
		{"ONE PIECE 108巻", 108, true},
		{"呪術廻戦 28 巻", 28, true},
		{"進撃の巨人（34）", 34, true},
		{"進撃の巨人（３４）", 34, true},
		{"SPY×FAMILY (13)", 13, true},
		{"チェンソーマン　19", 19, true},
		{"ブルーロック 0", 0, false},
		{"キングダム 199", 199, true},
		{"キングダム 200", 0, false},
		// the 巻 pattern outranks the trailing number
		{"よつばと! 15巻 2", 15, true},
		// an out-of-range match does not fall through to a later pattern
		{"画集 300巻 (5)", 0, false},
		{"ハイキュー!! 公式ファンブック", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := ParseVolumeNumber(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
