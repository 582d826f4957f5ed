package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/onnwee/contact-bot/crypto"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFormatAndRender(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"format arg", "", []string{"format", "<b>tree</b>"}, "**tree**\n"},
		{"render arg", "", []string{"render", "**tree**"}, "<b>tree</b>\n"},
		{"render joins args", "", []string{"render", "1", "(bob):", "**cat**"}, "1 (bob): <b>cat</b>\n"},
		{"format stdin lines", "<i>a</i>\n<code>!!help</code>\n", []string{"format"}, "*a*\n`!!help`\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, tt.stdin, tt.args...)
			if err != nil {
				t.Fatalf("execute() = %v", err)
			}
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"classify", "!!start c"}, "start letter=c\n"},
		{[]string{"classify", "!!unstar 3"}, "unstar number=3\n"},
		{[]string{"classify", "**tree**"}, "clue text=\"tree\"\n"},
		{[]string{"classify", "!!bogus"}, "unknown\n"},
		{[]string{"classify", "hello"}, "ignore\n"},
		{[]string{"classify", "--self", "1 (bob): **tree**"}, "self_clue_ack number=1\n"},
		{[]string{"classify", "--self", "--unstarred", "2 (bob): **dog**"}, "starred_unpin number=2\n"},
		{[]string{"classify", "--unstarred", "2 (bob): **dog**"}, "ignore\n"},
	}
	for _, tt := range tests {
		got, err := execute(t, "", tt.args...)
		if err != nil {
			t.Fatalf("%v: %v", tt.args, err)
		}
		if got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}

	if _, err := execute(t, "", "classify"); err == nil {
		t.Error("classify without a message should fail")
	}
}

func TestPlayScript(t *testing.T) {
	script := strings.Join([]string{
		"alice: !!start c",
		"bob: **cat**",
		"alice: !!add a",
		"carol: !!shutdown",
	}, "\n") + "\n"

	out, err := execute(t, script, "play", "--quiet")
	if err != nil {
		t.Fatalf("play = %v", err)
	}
	for _, want := range []string{
		"[ContactBot] alice defending **C**",
		"[ContactBot] 1 (bob): **cat**",
		"[ContactBot] alice defending **C A**",
		"[ContactBot] Shutting down...",
		"* ContactBot left the room",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "currently online") {
		t.Errorf("--quiet still announced:\n%s", out)
	}
}

func TestPlayEndsAtEOF(t *testing.T) {
	out, err := execute(t, "alice: !!help\n", "play", "--name", "Referee")
	if err != nil {
		t.Fatalf("play = %v", err)
	}
	for _, want := range []string{
		"[Referee] **The bot is currently online.",
		"[Referee] **Defender**:",
		"[Referee] Shutting down...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlayRejectionReply(t *testing.T) {
	out, err := execute(t, "bob: !!add x\n", "play", "-q")
	if err != nil {
		t.Fatalf("play = %v", err)
	}
	if !strings.Contains(out, "[ContactBot] @bob Warning: ") {
		t.Errorf("expected a warning reply to bob:\n%s", out)
	}
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "", "tokens", "keygen")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := crypto.NewBox(strings.TrimSpace(out)); err != nil {
		t.Errorf("keygen output %q is not a usable key: %v", out, err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	t.Setenv("CHAT_TRANSPORT", "console")
	t.Setenv("TWITCH_CLIENT_ID", "cid")
	t.Setenv("TWITCH_REDIRECT_URI", "http://localhost/callback")

	out, err := execute(t, "", "tokens", "authorize-url", "--state", "abc")
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range []string{"https://id.twitch.tv/oauth2/authorize?", "client_id=cid", "state=abc"} {
		if !strings.Contains(out, part) {
			t.Errorf("url %q missing %q", out, part)
		}
	}

	t.Setenv("TWITCH_REDIRECT_URI", "")
	if _, err := execute(t, "", "tokens", "authorize-url"); err == nil {
		t.Error("authorize-url without a redirect should fail")
	}
}

func TestTokenCommandsNeedConfig(t *testing.T) {
	t.Setenv("CHAT_TRANSPORT", "console")
	t.Setenv("DB_DSN", "")
	t.Setenv("ENCRYPTION_KEY", "")

	if _, err := execute(t, "", "tokens", "seal"); err == nil || !strings.Contains(err.Error(), "ENCRYPTION_KEY") {
		t.Errorf("seal without key = %v", err)
	}
	t.Setenv("ENCRYPTION_KEY", "c29tZS1rZXk=")
	if _, err := execute(t, "", "tokens", "seal"); err == nil || !strings.Contains(err.Error(), "DB_DSN") {
		t.Errorf("seal without DB_DSN = %v", err)
	}
	if _, err := execute(t, "", "tokens", "status"); err == nil {
		t.Error("status without DB_DSN should fail")
	}
	if _, err := execute(t, "", "db", "version"); err == nil {
		t.Error("db version without DB_DSN should fail")
	}
}
