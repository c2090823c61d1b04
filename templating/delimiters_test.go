package templating_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/templite/templating"
)

func TestParseDelimiters(t *testing.T) {
	t.Parallel()

	dl, err := templating.ParseDelimiters("<< >>  <% %>\t<# #>")
	require.NoError(t, err)

	assert.Equal(t, templating.Delimiters{
		ExprOpen:     "<<",
		ExprClose:    ">>",
		StmtOpen:     "<%",
		StmtClose:    "%>",
		CommentOpen:  "<#",
		CommentClose: "#>",
	}, dl)
	assert.Equal(t, "<< >> <% %> <# #>", dl.String())
}

func TestParseDelimiters_wrong_count(t *testing.T) {
	t.Parallel()

	_, err := templating.ParseDelimiters("{{ }} {% %}")

	require.ErrorIs(t, err, templating.ErrConfig)
	assert.Contains(t, err.Error(), "delimiters need 6 markers, got 4")
}

func TestDelimiters_Validate(t *testing.T) {
	t.Parallel()

	def := templating.DefaultDelimiters()

	tests := []struct {
		name   string
		modify func(dl *templating.Delimiters)
		want   string
	}{
		{
			name:   "empty marker",
			modify: func(dl *templating.Delimiters) { dl.StmtClose = "" },
			want:   "empty delimiter",
		},
		{
			name:   "whitespace in marker",
			modify: func(dl *templating.Delimiters) { dl.ExprOpen = "{ {" },
			want:   "contains whitespace",
		},
		{
			name:   "duplicate opener",
			modify: func(dl *templating.Delimiters) { dl.CommentOpen = "{%" },
			want:   `duplicate open delimiter "{%"`,
		},
		{
			name:   "duplicate closer",
			modify: func(dl *templating.Delimiters) { dl.ExprClose = "#}" },
			want:   `duplicate close delimiter "#}"`,
		},
		{
			name: "opener is another closer",
			modify: func(dl *templating.Delimiters) {
				dl.ExprOpen = "%}"
			},
			want: `open delimiter "%}" is also a close delimiter`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dl := def
			tt.modify(&dl)

			err := dl.Validate()

			require.ErrorIs(t, err, templating.ErrConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, def.Validate())
}

func TestEngine_zero_delimiters_use_defaults(t *testing.T) {
	t.Parallel()

	en := templating.Engine{
		Delimiters: templating.Delimiters{ExprOpen: "[[", ExprClose: "]]"},
	}

	tpl, err := en.Compile("[[ 1 + 1 ]] {{ kept }} {% x = 2 %}{{ x }}")
	require.NoError(t, err)

	out, err := tpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "2 {{ kept }} {{ x }}", out)
}
