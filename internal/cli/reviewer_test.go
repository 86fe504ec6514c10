package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/Veraticus/wantnot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestions(ids ...string) []model.Suggestion {
	out := make([]model.Suggestion, len(ids))
	for i, id := range ids {
		out[i] = model.Suggestion{TransactionID: id, CategoryID: "c", CategoryName: "Groceries", Method: model.MethodRule, Confidence: 0.9}
	}
	return out
}

func acceptedIDs(s []model.Suggestion) []string {
	ids := make([]string, len(s))
	for i, x := range s {
		ids[i] = x.TransactionID
	}
	return ids
}

func TestReviewer_Review(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr error
	}{
		{name: "accept and skip", input: "a\ns\na\n", want: []string{"t1", "t3"}},
		{name: "accept rest", input: "s\nr\n", want: []string{"t2", "t3"}},
		{name: "quit keeps earlier answers", input: "a\nq\n", want: []string{"t1"}},
		{name: "invalid choice is asked again", input: "maybe\nA\ns\ns\n", want: []string{"t1"}},
		{name: "input ends early", input: "a\n", want: []string{"t1"}, wantErr: ErrInputClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			reviewer := NewReviewer(strings.NewReader(tt.input), &out)

			accepted, err := reviewer.Review(context.Background(), suggestions("t1", "t2", "t3"), map[string]string{"t1": "COSTCO"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, acceptedIDs(accepted))
			assert.Contains(t, out.String(), "COSTCO")
		})
	}
}

func TestReviewer_InvalidChoiceMessage(t *testing.T) {
	var out bytes.Buffer
	reviewer := NewReviewer(strings.NewReader("x\nq\n"), &out)

	_, err := reviewer.Review(context.Background(), suggestions("t1"), nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Invalid choice")
}

func TestReviewer_Cancelled(t *testing.T) {
	r, _ := io.Pipe()
	reviewer := NewReviewer(r, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reviewer.Review(ctx, suggestions("t1"), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReviewer_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			reviewer := NewReviewer(strings.NewReader(tt.input), &bytes.Buffer{})
			ok, err := reviewer.Confirm(context.Background(), "Accept 3 suggestions?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
