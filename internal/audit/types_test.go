package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL_Valid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain https", "https://example.com", "https://example.com"},
		{"upper host lowered", "https://EXAMPLE.com/Path", "https://example.com/Path"},
		{"fragment stripped", "https://example.com/page#section", "https://example.com/page"},
		{"surrounding whitespace", "  http://example.com  ", "http://example.com"},
		{"query preserved", "https://example.com/?q=1", "https://example.com/?q=1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not a url", "ftp://example.com", "example.com", "//missing-scheme"} {
		_, err := NormalizeURL(in)
		require.ErrorIs(t, err, ErrInvalidURL, "input %q", in)
	}
}

func TestTaskID_Shape(t *testing.T) {
	t.Parallel()

	id := TaskID(AnalyzerContent, "0192d1f0-aaaa-bbbb-cccc-ddddeeeeffff")
	require.Equal(t, "content-0192d1f0-aaaa-bbbb-cccc-ddddeeeeffff", id)
}

func TestTaskPayload_Validate(t *testing.T) {
	t.Parallel()

	valid := TaskPayload{URL: "https://example.com", UserID: "u1", Type: AnalyzerStructural}
	require.NoError(t, valid.Validate())

	badType := valid
	badType.Type = "semantic"
	require.Error(t, badType.Validate())

	noUser := valid
	noUser.UserID = ""
	require.Error(t, noUser.Validate())

	badURL := valid
	badURL.URL = "nope"
	require.ErrorIs(t, badURL.Validate(), ErrInvalidURL)
}

func TestTaskState_Terminal(t *testing.T) {
	t.Parallel()

	require.True(t, TaskCompleted.Terminal())
	require.True(t, TaskFailed.Terminal())
	require.False(t, TaskWaiting.Terminal())
	require.False(t, TaskActive.Terminal())
}

func TestAnalyzerTypes_FanOutOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t, []AnalyzerType{AnalyzerStructural, AnalyzerContent, AnalyzerTechnical}, AnalyzerTypes())
	for _, at := range AnalyzerTypes() {
		require.True(t, at.Valid())
	}
	require.False(t, AnalyzerType("").Valid())
}
