package transform

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// record builds a Record with columns in the given order.
func record(pairs ...string) types.Record {
	r := types.Record{Values: map[string]string{}}
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Columns = append(r.Columns, pairs[i])
		r.Values[pairs[i]] = pairs[i+1]
	}
	return r
}

func newTransformer(t *testing.T, dates, numerics []string) *Transformer {
	t.Helper()
	c, err := types.NewClassification(dates, numerics)
	require.NoError(t, err)
	tr, err := New(Config{Index: "issues", Classification: c})
	require.NoError(t, err)
	return tr
}

func get(t *testing.T, doc Document, key string) string {
	t.Helper()
	v, ok := doc.Get(key)
	require.True(t, ok, "missing field %q", key)
	return v
}

func TestTransformDocumentOrder(t *testing.T) {
	tr := newTransformer(t, []string{"Created", "Resolution Date"}, []string{"Story Points"})
	doc, err := tr.Transform(record(
		"Summary", "Fix <login>",
		"Created", "2024-01-01",
		"Story Points", "",
		"Resolution Date", "",
	))
	require.NoError(t, err)

	want := Document{
		{Key: "Summary", Value: `"Fix <login>"`},
		{Key: "Created", Value: `"2024-01-01"`},
		{Key: "Story Points", Value: "null"},
		{Key: "Resolution Date", Value: "null"},
		{Key: FieldResolutionTime, Value: "null"},
		{Key: FieldTimeSpentHours, Value: "null"},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("Transform() mismatch (-want +got):\n%s", diff)
	}
}

func TestTransformConcreteRow(t *testing.T) {
	rec := record(
		"Created", "2024-01-01",
		"Resolution Date", "2024-01-04",
		"Time Spent", "7200",
		"Story Points", "3",
		"Sprint", "A Sprint,B Sprint",
	)

	t.Run("time spent classified default", func(t *testing.T) {
		tr := newTransformer(t, []string{"Created", "Resolution Date"}, []string{"Story Points"})
		doc, err := tr.Transform(rec)
		require.NoError(t, err)

		assert.Equal(t, "3", get(t, doc, FieldResolutionTime))
		assert.Equal(t, "null", get(t, doc, FieldTimeSpentHours))
		assert.Equal(t, `"B Sprint"`, get(t, doc, "Sprint"))
		assert.Equal(t, "3", get(t, doc, "Story Points"))
		assert.Equal(t, `"7200"`, get(t, doc, "Time Spent"))
		assert.Equal(t, `"2024-01-01"`, get(t, doc, "Created"))
	})

	t.Run("time spent classified numeric", func(t *testing.T) {
		tr := newTransformer(t, []string{"Created", "Resolution Date"}, []string{"Story Points", "Time Spent"})
		doc, err := tr.Transform(rec)
		require.NoError(t, err)

		assert.Equal(t, "2.0", get(t, doc, FieldTimeSpentHours))
		assert.Equal(t, "7200", get(t, doc, "Time Spent"))
	})
}

func TestTransformFieldOrder(t *testing.T) {
	tr := newTransformer(t, nil, nil)
	doc, err := tr.Transform(record("b", "1", "a", "2"))
	require.NoError(t, err)

	var keys []string
	for _, f := range doc {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"b", "a", FieldResolutionTime, FieldTimeSpentHours}, keys)
}

func TestTransformCoercion(t *testing.T) {
	tr := newTransformer(t, []string{"Due"}, []string{"Points"})

	tests := []struct {
		name string
		col  string
		in   string
		want string
	}{
		{"empty date is null", "Due", "", "null"},
		{"date quoted without reformatting", "Due", "01/Feb/24 10:15 AM", `"01/Feb/24 10:15 AM"`},
		{"date line breaks stripped", "Due", "2024-01-01\r\n", `"2024-01-01"`},
		{"empty numeric is null", "Points", "", "null"},
		{"numeric bare", "Points", "5.5", "5.5"},
		{"numeric quotes stripped", "Points", `"8"`, "8"},
		{"numeric single quotes stripped", "Points", "'13'", "13"},
		{"numeric of only quotes is null", "Points", `""`, "null"},
		{"empty text is empty string", "Summary", "", `""`},
		{"text quoted", "Summary", "Fix login", `"Fix login"`},
		{"text quotes escaped", "Summary", `say "hi"`, `"say \"hi\""`},
		{"text backslash escaped", "Summary", `C:\tmp`, `"C:\\tmp"`},
		{"text line breaks removed", "Summary", "line1\r\nline2\nline3", `"line1line2line3"`},
		{"text html not escaped", "Summary", "<a & b>", `"<a & b>"`},
		{"sprint single entry kept", "Sprint", "Only Sprint", `"Only Sprint"`},
		{"sprint last of three", "Sprint", "S1,S2,S3", `"S3"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := tr.Transform(record(tt.col, tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, get(t, doc, tt.col))
		})
	}
}

func TestResolutionTime(t *testing.T) {
	tests := []struct {
		name    string
		created string
		res     string
		want    string
	}{
		{"empty created", "", "2024-01-04", "null"},
		{"empty resolution", "2024-01-01", "", "null"},
		{"same day", "2024-01-01 08:00", "2024-01-01 17:00", "0"},
		{"floors partial days", "2024-01-01 08:00", "2024-01-03 07:59", "1"},
		{"resolution before created is absolute", "2024-01-10", "2024-01-03", "7"},
		{"jira format", "2/Jan/24 9:30 AM", "12/Jan/24 9:29 AM", "9"},
		{"rfc3339 with offsets", "2024-01-01T00:00:00Z", "2024-01-05T00:00:00Z", "4"},
		{"across leap day", "2024-02-28", "2024-03-01", "2"},
	}

	tr := newTransformer(t, []string{"Created", "Resolution Date"}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := tr.Transform(record("Created", tt.created, "Resolution Date", tt.res))
			require.NoError(t, err)
			assert.Equal(t, tt.want, get(t, doc, FieldResolutionTime))
		})
	}
}

func TestResolutionTimeAcrossDST(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	tr, err := New(Config{Index: "issues", Location: denver})
	require.NoError(t, err)

	// 2024-03-10 is the spring-forward date in Denver.
	doc, err := tr.Transform(record("Created", "2024-03-09 12:00", "Resolution Date", "2024-03-11 12:00"))
	require.NoError(t, err)
	assert.Equal(t, "2", get(t, doc, FieldResolutionTime))
}

func TestEmptyCreatedDate(t *testing.T) {
	tr := newTransformer(t, []string{"Created", "Resolution Date"}, nil)
	doc, err := tr.Transform(record("Created", "", "Resolution Date", "2024-01-04"))
	require.NoError(t, err)

	assert.Equal(t, "null", get(t, doc, "Created"))
	assert.Equal(t, "null", get(t, doc, FieldResolutionTime))

	out := string(tr.Frame("issues", doc))
	assert.Contains(t, out, `"Created":null`)
	assert.Contains(t, out, `"Resolution Time":null`)
}

func TestMalformedDate(t *testing.T) {
	tr := newTransformer(t, []string{"Created", "Resolution Date"}, nil)
	_, err := tr.Transform(record("Created", "yesterday", "Resolution Date", "2024-01-04"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMalformedDate)

	var rowErr *types.RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, ColumnCreated, rowErr.Column)
}

func TestTimeSpentHours(t *testing.T) {
	tr := newTransformer(t, nil, []string{"Time Spent"})

	tests := []struct {
		in   string
		want string
	}{
		{"", "null"},
		{"3600", "1.0"},
		{"5400", "1.5"},
		{"1000", "0.3"},
		{"180", "0.1"},
		{"0", "0.0"},
		{"36000000", "10000.0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			doc, err := tr.Transform(record("Time Spent", tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, get(t, doc, FieldTimeSpentHours))
		})
	}

	_, err := tr.Transform(record("Time Spent", "2h"))
	assert.ErrorIs(t, err, types.ErrMalformedNumber)
}

func TestFrame(t *testing.T) {
	tr := newTransformer(t, []string{"Created"}, []string{"Story Points"})
	doc, err := tr.Transform(record("Summary", "Fix it", "Created", "2024-01-01", "Story Points", "3"))
	require.NoError(t, err)

	out := string(tr.Frame("ia-board", doc))
	want := `{"create":{"_index":"issues","_type":"ia-board"}}` + "\n" +
		`{"Summary":"Fix it","Created":"2024-01-01","Story Points":3,"Resolution Time":null,"Time Spent (hrs)":null}` + "\n"
	assert.Equal(t, want, out)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.True(t, json.Valid([]byte(l)), l)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, types.ErrIndexEmpty)

	tr, err := New(Config{Index: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", tr.Index())
}

func TestActionLineEscapes(t *testing.T) {
	assert.Equal(t, `{"create":{"_index":"a\"b","_type":"t"}}`, ActionLine(`a"b`, "t"))
}
