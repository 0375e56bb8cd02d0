package runact

import "testing"

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/1234567890/secrettoken")
	if err != nil {
		t.Fatal(err)
	}
	if id != "1234567890" || token != "secrettoken" {
		t.Fatalf("got (%q, %q)", id, token)
	}

	if _, _, err := parseWebhookURL("https://example.com/not/a/webhook-url-at-all-nope"); err == nil {
		t.Fatal("expected error")
	}
}
