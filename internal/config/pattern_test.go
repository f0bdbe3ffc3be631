package config

import "testing"

func TestParseNamePattern(t *testing.T) {
	cases := []struct {
		raw       string
		project   string
		env       string
		want      string
		expectErr bool
	}{
		{raw: "{project}-{env}-network", project: "ragchat", env: "dev", want: "ragchat-dev-network"},
		{raw: "static-name", project: "ragchat", env: "dev", want: "static-name"},
		{raw: "{project}-bucket", project: "ragchat", env: "prod", want: "ragchat-bucket"},
		{raw: "{project}-{stage}", expectErr: true},
		{raw: "{Project}-app", expectErr: true},
		{raw: "", expectErr: true},
	}
	for _, tc := range cases {
		p, err := ParseNamePattern(tc.raw)
		if tc.expectErr {
			if err == nil {
				t.Fatalf("%q: want parse error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if got := p.Resolve(tc.project, tc.env); got != tc.want {
			t.Fatalf("%q: resolved %q want %q", tc.raw, got, tc.want)
		}
	}
}
