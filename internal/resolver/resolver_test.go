package resolver

import (
	"reflect"
	"strings"
	"testing"
)

func TestResolveScenarios(t *testing.T) {
	tests := []struct {
		name        string
		dice        [3]int
		wantTotal   int
		wantBig     bool
		wantOdd     bool
		wantTriple  bool
		wantPair    bool
		mustInclude []string
		mustExclude []string
		wantCount   int
	}{
		{
			name:      "three-four-five",
			dice:      [3]int{3, 4, 5},
			wantTotal: 12,
			wantBig:   true,
			mustInclude: []string{
				"big", "even", "total-12",
				"single-3", "single-4", "single-5",
				"combo-3-4", "combo-3-5", "combo-4-5",
			},
			mustExclude: []string{"small", "odd", "any-triple", "pair-3", "pair-4", "pair-5"},
			wantCount:   9,
		},
		{
			name:       "pair-of-twos",
			dice:       [3]int{2, 2, 5},
			wantTotal:  9,
			wantOdd:    true,
			wantPair:   true,
			mustInclude: []string{
				"small", "odd", "total-9",
				"single-2", "single-5",
				"pair-2", "combo-2-5",
			},
			mustExclude: []string{"big", "even", "any-triple", "triple-2", "combo-5-2"},
			wantCount:   7,
		},
		{
			name:       "triple-threes",
			dice:       [3]int{3, 3, 3},
			wantTotal:  9,
			wantOdd:    true,
			wantTriple: true,
			mustInclude: []string{
				"small", "odd", "total-9",
				"single-3", "triple-3", "any-triple",
			},
			mustExclude: []string{"big", "even", "pair-3", "combo-3-3"},
			wantCount:   6,
		},
		{
			name:      "max-total-is-big",
			dice:      [3]int{6, 6, 6},
			wantTotal: 18,
			wantBig:   true,
			wantTriple: true,
			mustInclude: []string{"big", "even", "total-18", "triple-6", "any-triple", "single-6"},
			mustExclude: []string{"small"},
			wantCount:   6,
		},
		{
			name:      "min-total-is-small",
			dice:      [3]int{1, 1, 1},
			wantTotal: 3,
			wantOdd:   true,
			wantTriple: true,
			mustInclude: []string{"small", "odd", "total-3", "triple-1", "any-triple", "single-1"},
			mustExclude: []string{"big"},
			wantCount:   6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(tt.dice[0], tt.dice[1], tt.dice[2])
			if err != nil {
				t.Fatalf("Resolve(%v) error: %v", tt.dice, err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if res.IsBig != tt.wantBig {
				t.Errorf("IsBig = %v, want %v", res.IsBig, tt.wantBig)
			}
			if res.IsOdd != tt.wantOdd {
				t.Errorf("IsOdd = %v, want %v", res.IsOdd, tt.wantOdd)
			}
			if res.IsTriple != tt.wantTriple {
				t.Errorf("IsTriple = %v, want %v", res.IsTriple, tt.wantTriple)
			}
			if res.IsPair != tt.wantPair {
				t.Errorf("IsPair = %v, want %v", res.IsPair, tt.wantPair)
			}
			for _, c := range tt.mustInclude {
				if !res.Winning.Contains(c) {
					t.Errorf("winning set missing %q: %v", c, res.Winning.Sorted())
				}
			}
			for _, c := range tt.mustExclude {
				if res.Winning.Contains(c) {
					t.Errorf("winning set must not contain %q: %v", c, res.Winning.Sorted())
				}
			}
			if len(res.Winning) != tt.wantCount {
				t.Errorf("winning set size = %d, want %d: %v", len(res.Winning), tt.wantCount, res.Winning.Sorted())
			}
		})
	}
}

// TestResolveOrderIndependent 中奖集合只由三枚点数的多重集决定，
// 与输入顺序无关
func TestResolveOrderIndependent(t *testing.T) {
	for d1 := 1; d1 <= 6; d1++ {
		for d2 := 1; d2 <= 6; d2++ {
			for d3 := 1; d3 <= 6; d3++ {
				base, err := Resolve(d1, d2, d3)
				if err != nil {
					t.Fatalf("Resolve(%d,%d,%d) error: %v", d1, d2, d3, err)
				}
				perms := [][3]int{
					{d1, d3, d2}, {d2, d1, d3}, {d2, d3, d1}, {d3, d1, d2}, {d3, d2, d1},
				}
				for _, p := range perms {
					got, err := Resolve(p[0], p[1], p[2])
					if err != nil {
						t.Fatalf("Resolve(%v) error: %v", p, err)
					}
					if !reflect.DeepEqual(got.Winning, base.Winning) {
						t.Fatalf("Resolve(%v) winning set differs from Resolve(%d,%d,%d): %v vs %v",
							p, d1, d2, d3, got.Winning.Sorted(), base.Winning.Sorted())
					}
				}
			}
		}
	}
}

// TestResolveProperties 对全部 216 种组合校验结构性质
func TestResolveProperties(t *testing.T) {
	for d1 := 1; d1 <= 6; d1++ {
		for d2 := 1; d2 <= 6; d2++ {
			for d3 := 1; d3 <= 6; d3++ {
				res, err := Resolve(d1, d2, d3)
				if err != nil {
					t.Fatalf("Resolve(%d,%d,%d) error: %v", d1, d2, d3, err)
				}

				// 大小互斥且必居其一
				if res.Winning.Contains(CategoryBig) == res.Winning.Contains(CategorySmall) {
					t.Errorf("(%d,%d,%d): big/small 必须恰好命中一个", d1, d2, d3)
				}
				// 单双互斥且必居其一
				if res.Winning.Contains(CategoryOdd) == res.Winning.Contains(CategoryEven) {
					t.Errorf("(%d,%d,%d): odd/even 必须恰好命中一个", d1, d2, d3)
				}
				// 总点数玩法唯一
				if !res.Winning.Contains(TotalCategory(res.Total)) {
					t.Errorf("(%d,%d,%d): 缺少 total-%d", d1, d2, d3, res.Total)
				}

				// combo 数 = 不同点数两两组合数
				distinct := map[int]bool{d1: true, d2: true, d3: true}
				n := len(distinct)
				wantCombos := n * (n - 1) / 2
				combos := 0
				for c := range res.Winning {
					if strings.HasPrefix(c, "combo-") {
						combos++
					}
				}
				if combos != wantCombos {
					t.Errorf("(%d,%d,%d): combo 数 = %d, want %d", d1, d2, d3, combos, wantCombos)
				}

				// 围骰与对子互斥
				if res.IsTriple && res.IsPair {
					t.Errorf("(%d,%d,%d): triple 与 pair 不能同时成立", d1, d2, d3)
				}
				// 围骰必带 any-triple，非围骰不带
				if res.IsTriple != res.Winning.Contains(CategoryAnyTriple) {
					t.Errorf("(%d,%d,%d): any-triple 与 IsTriple 不一致", d1, d2, d3)
				}
			}
		}
	}
}

func TestResolveInvalidInput(t *testing.T) {
	cases := [][3]int{
		{0, 3, 4},
		{1, 7, 2},
		{-1, 2, 3},
		{1, 2, 100},
	}
	for _, dice := range cases {
		if _, err := Resolve(dice[0], dice[1], dice[2]); err == nil {
			t.Errorf("Resolve(%v) 应当返回错误", dice)
		}
	}
}

func TestComboCategoryOrdering(t *testing.T) {
	if got := ComboCategory(5, 2); got != "combo-2-5" {
		t.Errorf("ComboCategory(5,2) = %q, want combo-2-5", got)
	}
	if got := ComboCategory(2, 5); got != "combo-2-5" {
		t.Errorf("ComboCategory(2,5) = %q, want combo-2-5", got)
	}
}
