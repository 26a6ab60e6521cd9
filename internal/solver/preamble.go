package solver

import (
	"fmt"
	"strings"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
)

// buildPreamble emits the sort/function declarations every encoded program
// needs before its own nodes: Memory/Cache/BTB/PHT aliased to concrete
// Array sorts plus their width-indexed helper functions, the Predictor
// uninterpreted sort/functions, and (Z3/CVC4 only) the Tuple/List
// datatypes. Grounded on original_source/src/solver/rsmt.rs's
// define_memory/define_predictor/define_cache/define_btb/define_pht/
// define_tuple/define_list.
func buildPreamble(solverType environment.Solver) string {
	var b strings.Builder

	if solverType == environment.Yices2 {
		fmt.Fprintln(&b, "(set-logic QF_AUFBV)")
	}

	word := fmt.Sprintf("(_ BitVec %d)", expr.WordWidth)

	fmt.Fprintf(&b, "(define-sort Memory () (Array %s (_ BitVec 8)))\n", word)
	for _, width := range expr.AccessWidths {
		bytes := width / 8
		selects := make([]string, bytes)
		for i := 0; i < bytes; i++ {
			byteOffset := bytes - 1 - i
			selects[i] = fmt.Sprintf("(select mem (bvadd addr (_ bv%d %d)))", byteOffset, expr.WordWidth)
		}
		fmt.Fprintf(&b, "(define-fun mem-load%d ((mem Memory) (addr %s)) (_ BitVec %d) %s)\n",
			width, word, width, concatChain(selects))

		store := "mem"
		for byteOffset := bytes - 1; byteOffset >= 0; byteOffset-- {
			bitOffset := byteOffset * 8
			store = fmt.Sprintf("(store %s (bvadd addr (_ bv%d %d)) ((_ extract %d %d) val))",
				store, byteOffset, expr.WordWidth, bitOffset+7, bitOffset)
		}
		fmt.Fprintf(&b, "(define-fun mem-store%d ((mem Memory) (addr %s) (val (_ BitVec %d))) Memory %s)\n",
			width, word, width, store)
	}

	fmt.Fprintf(&b, "(define-sort Cache () (Array %s Bool))\n", word)
	for _, width := range expr.AccessWidths {
		bytes := width / 8
		fetch := "cache"
		evict := "cache"
		for byte := 0; byte < bytes; byte++ {
			fetch = fmt.Sprintf("(store %s (bvadd addr (_ bv%d %d)) true)", fetch, byte, expr.WordWidth)
			evict = fmt.Sprintf("(store %s (bvadd addr (_ bv%d %d)) false)", evict, byte, expr.WordWidth)
		}
		fmt.Fprintf(&b, "(define-fun cache-fetch%d ((cache Cache) (addr %s)) Cache %s)\n", width, word, fetch)
		fmt.Fprintf(&b, "(define-fun cache-evict%d ((cache Cache) (addr %s)) Cache %s)\n", width, word, evict)
	}

	fmt.Fprintf(&b, "(define-sort BTB () (Array %s %s))\n", word, word)
	fmt.Fprintf(&b, "(define-fun btb-track ((btb BTB) (location %s) (target %s)) BTB (store btb location target))\n", word, word)

	fmt.Fprintf(&b, "(define-sort PHT () (Array %s Bool))\n", word)
	fmt.Fprintf(&b, "(define-fun pht-taken ((pht PHT) (location %s)) PHT (store pht location true))\n", word)
	fmt.Fprintf(&b, "(define-fun pht-not-taken ((pht PHT) (location %s)) PHT (store pht location false))\n", word)

	fmt.Fprintln(&b, "(declare-sort Predictor 0)")
	fmt.Fprintf(&b, "(declare-fun speculation-window (Predictor %s) (_ BitVec %d))\n", word, environment.SpeculationWindowSize)
	fmt.Fprintf(&b, "(declare-fun predictor-speculate (Predictor %s) Bool)\n", word)
	fmt.Fprintf(&b, "(declare-fun predictor-taken (Predictor %s) Bool)\n", word)

	if solverType != environment.Yices2 {
		for n := 1; n <= 9; n++ {
			fields := make([]string, n)
			ctor := fmt.Sprintf("tuple%d", n)
			for i := 0; i < n; i++ {
				fields[i] = fmt.Sprintf("(tuple%d-field%d T%d)", n, i, i)
			}
			params := make([]string, n)
			for i := 0; i < n; i++ {
				params[i] = fmt.Sprintf("T%d", i)
			}
			fmt.Fprintf(&b, "(declare-datatypes (%s) ((Tuple%d (%s %s))))\n",
				joinSortParams(params), n, ctor, strings.Join(fields, " "))
		}
		fmt.Fprintln(&b, "(declare-datatypes (T) ((List nil (cons (head T) (tail (List T))))))")
	}

	return b.String()
}

func concatChain(terms []string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	return fmt.Sprintf("(concat %s %s)", terms[0], concatChain(terms[1:]))
}

func joinSortParams(params []string) string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = fmt.Sprintf("(%s 0)", p)
	}
	return strings.Join(out, " ")
}
