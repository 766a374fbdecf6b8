package cache

import (
	"reflect"
	"testing"
	"time"
)

type node struct {
	Name     string
	Children []*node
	Parent   *node
	Meta     map[string]any
	When     time.Time
	secret   []int
}

func TestClone_Primitives(t *testing.T) {
	if Clone(42) != 42 || Clone("s") != "s" || Clone(true) != true {
		t.Fatal("primitives must pass through")
	}
	var nilSlice []int
	if Clone(nilSlice) != nil {
		t.Error("nil slice must stay nil")
	}
	var nilMap map[string]int
	if Clone(nilMap) != nil {
		t.Error("nil map must stay nil")
	}
	var nilAny any
	if Clone(nilAny) != nil {
		t.Error("nil interface must stay nil")
	}
}

func TestClone_DeepCopies(t *testing.T) {
	tests := []struct {
		name   string
		src    func() any
		mutate func(any)
	}{
		{
			name:   "slice",
			src:    func() any { return []int{1, 2, 3} },
			mutate: func(v any) { v.([]int)[0] = 99 },
		},
		{
			name:   "nested slices",
			src:    func() any { return [][]string{{"a"}, {"b"}} },
			mutate: func(v any) { v.([][]string)[1][0] = "z" },
		},
		{
			name:   "map",
			src:    func() any { return map[string][]int{"k": {1}} },
			mutate: func(v any) { v.(map[string][]int)["k"][0] = 2 },
		},
		{
			name:   "pointer",
			src:    func() any { x := 1; return &x },
			mutate: func(v any) { *v.(*int) = 2 },
		},
		{
			name:   "any values",
			src:    func() any { return map[string]any{"list": []any{1, map[string]any{"x": 1}}} },
			mutate: func(v any) { v.(map[string]any)["list"].([]any)[1].(map[string]any)["x"] = 2 },
		},
		{
			name:   "array of slices",
			src:    func() any { return [2][]int{{1}, {2}} },
			mutate: func(v any) { a := v.([2][]int); a[0][0] = 9 },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			original := tc.src()
			copied := Clone(original)
			if !reflect.DeepEqual(original, copied) {
				t.Fatalf("clone differs: %#v vs %#v", original, copied)
			}
			tc.mutate(copied)
			if !reflect.DeepEqual(original, tc.src()) {
				t.Errorf("mutating the clone changed the original: %#v", original)
			}
		})
	}
}

func TestClone_StructsAndCycles(t *testing.T) {
	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	root := &node{Name: "root", When: when, Meta: map[string]any{"k": "v"}, secret: []int{1}}
	child := &node{Name: "child", Parent: root}
	root.Children = []*node{child}

	c := Clone(root)

	if c == root || c.Children[0] == child {
		t.Fatal("pointers were not copied")
	}
	if c.Children[0].Parent != c {
		t.Error("cycle not preserved onto the clone")
	}
	if !c.When.Equal(when) {
		t.Errorf("time changed: %v", c.When)
	}
	c.Meta["k"] = "changed"
	if root.Meta["k"] != "v" {
		t.Error("map shared with original")
	}
	if len(c.secret) != 1 {
		t.Error("unexported fields must be carried over")
	}
}

func BenchmarkClone_Struct(b *testing.B) {
	v := account{Name: "a", Tags: []string{"x", "y"}, Limit: map[string]int{"daily": 1}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Clone(v)
	}
}
