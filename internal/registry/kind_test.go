package registry

import (
	"errors"
	"maps"
	"slices"
	"testing"
)

func TestParseList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "Empty", raw: "", want: []string{}},
		{name: "Blank", raw: "  ", want: []string{}},
		{name: "Single", raw: "st2actioncontroller", want: []string{"st2actioncontroller"}},
		{name: "TrimsElements", raw: "a, b ,c", want: []string{"a", "b", "c"}},
		{name: "KeepsDuplicatesAndOrder", raw: "c,a,c", want: []string{"c", "a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseList(tt.raw); !slices.Equal(got, tt.want) {
				t.Fatalf("ParseList(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseMap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr bool
	}{
		{name: "Empty", raw: "", want: map[string]string{}},
		{name: "Pairs", raw: "404=/errors/404, 500 = /errors/500", want: map[string]string{"404": "/errors/404", "500": "/errors/500"}},
		{name: "ColonSeparator", raw: "__force_dict__:true", want: map[string]string{"__force_dict__": "true"}},
		{name: "LastWriteWins", raw: "a=1,a=2", want: map[string]string{"a": "2"}},
		{name: "ValueWithEquals", raw: "q=a=b", want: map[string]string{"q": "a=b"}},
		{name: "TrailingComma", raw: "a=1,", want: map[string]string{"a": "1"}},
		{name: "MissingSeparator", raw: "a=1,b", wantErr: true},
		{name: "EmptyKey", raw: "=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMap(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !maps.Equal(got, tt.want) {
				t.Fatalf("ParseMap(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestListAndMapRoundTrip(t *testing.T) {
	t.Parallel()

	lists := [][]string{
		{},
		{"st2actioncontroller"},
		{"a", "b", "a", "c"},
		{"/opt/stackstorm/actions", "http://localhost:9501/liveactions"},
	}
	for _, list := range lists {
		if got := ParseList(FormatList(list)); !slices.Equal(got, list) {
			t.Fatalf("list round trip: got %q, want %q", got, list)
		}
	}

	dicts := []map[string]string{
		{},
		{"__force_dict__": "true"},
		{"404": "/errors/404", "500": "/errors/500", "k": "v:w"},
	}
	for _, dict := range dicts {
		got, err := ParseMap(FormatMap(dict))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !maps.Equal(got, dict) {
			t.Fatalf("map round trip: got %v, want %v", got, dict)
		}
	}
}

func TestFormatMapSortsKeys(t *testing.T) {
	got := FormatMap(map[string]string{"b": "2", "a": "1", "c": "3"})
	if got != "a=1,b=2,c=3" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestKindParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    any
		wantErr bool
	}{
		{name: "String", kind: KindString, raw: " 0.0.0.0", want: " 0.0.0.0"},
		{name: "Integer", kind: KindInteger, raw: " 9101 ", want: 9101},
		{name: "NegativeInteger", kind: KindInteger, raw: "-1", want: -1},
		{name: "InvalidInteger", kind: KindInteger, raw: "91o1", wantErr: true},
		{name: "BoolTrue", kind: KindBoolean, raw: "Yes", want: true},
		{name: "BoolOff", kind: KindBoolean, raw: "off", want: false},
		{name: "BoolZero", kind: KindBoolean, raw: "0", want: false},
		{name: "InvalidBool", kind: KindBoolean, raw: "maybe", wantErr: true},
		{name: "UnknownKind", kind: Kind(42), raw: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.kind.Parse(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestKindParseUnknownKindIsInvalidOption(t *testing.T) {
	if _, err := Kind(0).Parse("x"); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
}

func TestKindString(t *testing.T) {
	if KindStringList.String() != "list" {
		t.Fatalf("unexpected name %q", KindStringList.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Fatalf("unexpected name %q", Kind(99).String())
	}
}
