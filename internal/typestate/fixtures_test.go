package typestate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/config"
	"github.com/vk/seedgrid/internal/handle"
)

func param(name, kind, ownership string) *config.Param {
	return &config.Param{Name: name, Kind: kind, Ownership: ownership}
}

func value(name string, values ...string) *config.Param {
	return &config.Param{Name: name, Ownership: "value", Values: values}
}

func cjsonCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	lib := &config.Library{
		Name:    "cJSON",
		Handles: []*config.HandleKind{{Name: "cJSON", CType: "cJSON *"}},
		Functions: []*config.Function{
			{Name: "cJSON_CreateObject", Phases: []string{"init", "configure"},
				Returns: &config.Return{Kind: "cJSON", Ownership: "out_handle", OnError: "null_return"}},
			{Name: "cJSON_CreateString", Phases: []string{"init", "configure"},
				Params:  []*config.Param{value("string", `"x"`)},
				Returns: &config.Return{Kind: "cJSON", Ownership: "out_handle"}},
			{Name: "cJSON_CreateStringReference", Phases: []string{"configure", "operate"},
				Params:  []*config.Param{value("string", `"ref"`)},
				Returns: &config.Return{Kind: "cJSON", Ownership: "reference"}},
			{Name: "cJSON_AddItemToObject", Phases: []string{"configure", "operate"},
				Params: []*config.Param{
					param("object", "cJSON", "borrow_in"),
					value("string", `"k"`),
					{Name: "item", Kind: "cJSON", Ownership: "transfer_out", Owner: "object"},
				}},
			{Name: "cJSON_GetObjectItem", Phases: []string{"operate"},
				Params:  []*config.Param{param("object", "cJSON", "borrow_in"), value("string", `"k"`)},
				Returns: &config.Return{Kind: "cJSON", Ownership: "alias", From: "object"}},
			{Name: "cJSON_DetachItemViaPointer", Phases: []string{"operate"},
				Params: []*config.Param{
					param("parent", "cJSON", "borrow_in"),
					{Name: "item", Kind: "cJSON", Ownership: "detach", Owner: "parent"},
				}},
			{Name: "cJSON_ReplaceItemViaPointer", Phases: []string{"operate"},
				Params: []*config.Param{
					param("parent", "cJSON", "borrow_in"),
					param("item", "cJSON", "owns_in"),
					{Name: "replacement", Kind: "cJSON", Ownership: "transfer_out", Owner: "parent"},
				}},
			{Name: "cJSON_IsObject", Phases: []string{"operate"},
				Params: []*config.Param{param("item", "cJSON", "borrow_in")}},
			{Name: "cJSON_Delete", Phases: []string{"cleanup"}, Destructor: true, Critical: true,
				Params: []*config.Param{param("item", "cJSON", "owns_in")}},
		},
	}
	cat, err := catalogue.Ingest(lib)
	require.NoError(t, err)
	return cat
}

func zlibCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	lib := &config.Library{
		Name:    "zlib",
		Handles: []*config.HandleKind{{Name: "z_stream", CType: "z_stream", Storage: "stack"}},
		Functions: []*config.Function{
			{Name: "deflateInit_", Phases: []string{"init"},
				Params: []*config.Param{
					param("strm", "z_stream", "out_handle"),
					value("level", "Z_DEFAULT_COMPRESSION"),
					value("version", "ZLIB_VERSION"),
					value("stream_size", "(int)sizeof(z_stream)"),
				},
				Returns: &config.Return{CType: "int", OnError: "sentinel_code"}},
			{Name: "deflate", Phases: []string{"operate"},
				Params: []*config.Param{param("strm", "z_stream", "borrow_in"), value("flush", "Z_FINISH")}},
			{Name: "deflateEnd", Phases: []string{"cleanup"}, Destructor: true,
				Params: []*config.Param{param("strm", "z_stream", "owns_in")}},
		},
	}
	cat, err := catalogue.Ingest(lib)
	require.NoError(t, err)
	return cat
}

func sqliteCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	lib := &config.Library{
		Name: "sqlite3",
		Handles: []*config.HandleKind{
			{Name: "db", CType: "sqlite3 *"},
			{Name: "stmt", CType: "sqlite3_stmt *"},
		},
		Functions: []*config.Function{
			{Name: "sqlite3_open", Phases: []string{"init"},
				Params: []*config.Param{value("filename", `":memory:"`), param("ppDb", "db", "out_handle")}},
			{Name: "sqlite3_prepare_v2", Phases: []string{"configure"},
				Params: []*config.Param{
					param("db", "db", "borrow_in"),
					value("zSql", `"SELECT 1;"`),
					value("nByte", "-1"),
					{Name: "ppStmt", Kind: "stmt", Ownership: "out_handle", Parent: "db"},
					value("pzTail", "NULL"),
				}},
			{Name: "sqlite3_step", Phases: []string{"operate"},
				Params: []*config.Param{param("stmt", "stmt", "borrow_in")}},
			{Name: "sqlite3_finalize", Phases: []string{"cleanup"}, Destructor: true,
				Params: []*config.Param{param("stmt", "stmt", "owns_in")}},
			{Name: "sqlite3_close", Phases: []string{"cleanup"}, Destructor: true,
				Params: []*config.Param{param("db", "db", "owns_in")}},
		},
	}
	cat, err := catalogue.Ingest(lib)
	require.NoError(t, err)
	return cat
}

// call applies fn and fails the test on error.
func call(t *testing.T, tr *Tracker, cat *catalogue.Catalogue, phase catalogue.Phase, name string, bindings ...handle.Ref) []handle.Ref {
	t.Helper()
	produced, err := try(t, tr, cat, phase, name, bindings...)
	require.NoError(t, err, name)
	return produced
}

// try applies fn, padding bindings to the parameter count.
func try(t *testing.T, tr *Tracker, cat *catalogue.Catalogue, phase catalogue.Phase, name string, bindings ...handle.Ref) ([]handle.Ref, error) {
	t.Helper()
	fn, err := cat.Lookup(name)
	require.NoError(t, err)
	full := make([]handle.Ref, len(fn.Params))
	copy(full, bindings)
	return tr.Apply(Step{Function: fn, Phase: phase}, full)
}
