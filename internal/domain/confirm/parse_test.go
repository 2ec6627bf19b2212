package confirm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantPresent bool
		wantDesc    string
		wantErr     bool
	}{
		{
			name:        "strict json",
			reply:       `{"person_present": true, "description": "a person near the door"}`,
			wantPresent: true,
			wantDesc:    "a person near the door",
		},
		{
			name:        "negative verdict",
			reply:       `{"person_present": false, "description": "empty driveway"}`,
			wantPresent: false,
			wantDesc:    "empty driveway",
		},
		{
			name:        "code fenced",
			reply:       "```json\n{\"person_present\": true, \"description\": \"a courier\"}\n```",
			wantPresent: true,
			wantDesc:    "a courier",
		},
		{
			name:        "python literals",
			reply:       `{'person_present': True, 'description': 'a person walking'}`,
			wantPresent: true,
			wantDesc:    "a person walking",
		},
		{
			name:    "missing person_present",
			reply:   `{"description": "a dog"}`,
			wantErr: true,
		},
		{
			name:    "prose reply",
			reply:   "Yes, I can see a person in this image.",
			wantErr: true,
		},
		{
			name:    "empty reply",
			reply:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseVerdict(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, result.PersonPresent)
			assert.Equal(t, tt.wantPresent, *result.PersonPresent)
			assert.Equal(t, tt.wantDesc, result.Description)
		})
	}
}

func TestResult_States(t *testing.T) {
	var nilResult *Result
	assert.True(t, nilResult.Unknown())
	assert.False(t, nilResult.Confirmed())

	unknown := &Result{}
	assert.True(t, unknown.Unknown())
	assert.False(t, unknown.Confirmed())

	yes := true
	confirmed := &Result{PersonPresent: &yes, Description: "a person"}
	assert.False(t, confirmed.Unknown())
	assert.True(t, confirmed.Confirmed())

	no := false
	denied := &Result{PersonPresent: &no}
	assert.False(t, denied.Unknown())
	assert.False(t, denied.Confirmed())
}
