package resolver

import (
	"fmt"
	"sort"
)

// ============================================================================
// 骰宝开奖解析
// ============================================================================
//
// 纯函数：三枚骰子点数 → 本局全部中奖玩法集合，无 I/O、无状态，
// 结果只取决于三枚点数构成的多重集（与输入顺序无关）
//
// 玩法键约定：
//   big / small          大小（big = 总点数 11~18，small = 3~10）
//   odd / even           单双
//   total-{t}            总点数，t ∈ 3~18
//   single-{v}           单骰，出现过的每个点数各一项
//   pair-{v}             对子，恰好两枚同点时的同点值
//   triple-{v}           围骰（指定）
//   any-triple           围骰（任意）
//   combo-{a}-{b}        二不同点组合，a < b，取自出现过的不同点数两两组合
//
// 边界：围骰只有一个不同点数，不产生 combo；对子恰好产生一条 combo
// （对子点数 × 第三枚点数）

const (
	CategoryBig       = "big"
	CategorySmall     = "small"
	CategoryOdd       = "odd"
	CategoryEven      = "even"
	CategoryAnyTriple = "any-triple"
)

// TotalCategory 返回总点数玩法键，如 total-12
func TotalCategory(total int) string {
	return fmt.Sprintf("total-%d", total)
}

// SingleCategory 返回单骰玩法键，如 single-3
func SingleCategory(v int) string {
	return fmt.Sprintf("single-%d", v)
}

// PairCategory 返回对子玩法键，如 pair-4
func PairCategory(v int) string {
	return fmt.Sprintf("pair-%d", v)
}

// TripleCategory 返回指定围骰玩法键，如 triple-3
func TripleCategory(v int) string {
	return fmt.Sprintf("triple-%d", v)
}

// ComboCategory 返回二不同点组合玩法键，自动排序保证 combo-2-5 而非 combo-5-2
func ComboCategory(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("combo-%d-%d", a, b)
}

// CategorySet 中奖玩法集合
type CategorySet map[string]struct{}

func (s CategorySet) Contains(category string) bool {
	_, ok := s[category]
	return ok
}

// Sorted 返回排序后的玩法列表，便于日志和事件输出稳定
func (s CategorySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Result 一次开奖解析结果
type Result struct {
	Die1, Die2, Die3 int
	Total            int  // 总点数 3~18
	IsBig            bool // 大：11~18；小为其补集 3~10
	IsOdd            bool
	IsTriple         bool // 三枚同点
	TripleValue      int
	IsPair           bool // 恰好两枚同点
	PairValue        int
	Winning          CategorySet
}

// Resolve 解析三枚骰子点数，返回本局全部中奖玩法
// 点数不在 1~6 范围内视为非法输入（不可重试的数据错误）
func Resolve(d1, d2, d3 int) (*Result, error) {
	for _, d := range []int{d1, d2, d3} {
		if d < 1 || d > 6 {
			return nil, fmt.Errorf("invalid die value: %d", d)
		}
	}

	r := &Result{
		Die1:  d1,
		Die2:  d2,
		Die3:  d3,
		Total: d1 + d2 + d3,
	}

	// 点数出现次数
	counts := make(map[int]int, 3)
	for _, d := range []int{d1, d2, d3} {
		counts[d]++
	}

	// 不同点数，升序
	distinct := make([]int, 0, 3)
	for v := range counts {
		distinct = append(distinct, v)
	}
	sort.Ints(distinct)

	for v, n := range counts {
		switch n {
		case 3:
			r.IsTriple = true
			r.TripleValue = v
		case 2:
			r.IsPair = true
			r.PairValue = v
		}
	}

	r.IsBig = r.Total >= 11
	r.IsOdd = r.Total%2 == 1

	winning := make(CategorySet)
	if r.IsBig {
		winning[CategoryBig] = struct{}{}
	} else {
		winning[CategorySmall] = struct{}{}
	}
	if r.IsOdd {
		winning[CategoryOdd] = struct{}{}
	} else {
		winning[CategoryEven] = struct{}{}
	}
	winning[TotalCategory(r.Total)] = struct{}{}

	for _, v := range distinct {
		winning[SingleCategory(v)] = struct{}{}
	}

	if r.IsTriple {
		winning[TripleCategory(r.TripleValue)] = struct{}{}
		winning[CategoryAnyTriple] = struct{}{}
	}
	if r.IsPair {
		winning[PairCategory(r.PairValue)] = struct{}{}
	}

	// 不同点数两两组合；围骰只有一个不同点数，天然不产生 combo
	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			winning[ComboCategory(distinct[i], distinct[j])] = struct{}{}
		}
	}

	r.Winning = winning
	return r, nil
}
