package main

import (
	"testing"
)

func TestSecretVersionName(t *testing.T) {
	testCases := []struct {
		secretsProject, dataProject string
		want                        string
		wantErr                     bool
	}{
		{secretsProject: "secrets", dataProject: "data", want: "projects/secrets/secrets/sendgrid/versions/latest"},
		{dataProject: "data", want: "projects/data/secrets/sendgrid/versions/latest"},
		{wantErr: true},
	}
	for _, tc := range testCases {
		got, err := secretVersionName(tc.secretsProject, tc.dataProject, "sendgrid")
		if (err != nil) != tc.wantErr {
			t.Errorf("secretVersionName(%q, %q): got error %v, want error %v", tc.secretsProject, tc.dataProject, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("secretVersionName(%q, %q) = %q, want %q", tc.secretsProject, tc.dataProject, got, tc.want)
		}
	}
}
