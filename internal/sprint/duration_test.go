package sprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "minutes only", input: "15", want: 900},
		{name: "single minute", input: "1", want: 60},
		{name: "minutes and seconds", input: "5:30", want: 330},
		{name: "zero seconds", input: "2:00", want: 120},
		{name: "max seconds", input: "1:59", want: 119},
		{name: "empty", input: "", wantErr: true},
		{name: "zero minutes", input: "0", wantErr: true},
		{name: "negative minutes", input: "-3", wantErr: true},
		{name: "zero minutes with seconds", input: "0:30", wantErr: true},
		{name: "seconds overflow", input: "1:60", wantErr: true},
		{name: "negative seconds", input: "1:-5", wantErr: true},
		{name: "too many parts", input: "1:2:3", wantErr: true},
		{name: "not a number", input: "abc", wantErr: true},
		{name: "garbage seconds", input: "1:xy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "empty", input: "", want: 0},
		{name: "whitespace only", input: "   \n\t  ", want: 0},
		{name: "single word", input: "hello", want: 1},
		{name: "simple sentence", input: "the quick brown fox", want: 4},
		{name: "collapsed whitespace", input: "one   two\n\nthree\tfour", want: 4},
		{name: "leading and trailing spaces", input: "  padded words  ", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWords(tt.input))
		})
	}
}
