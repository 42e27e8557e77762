// Command fakeupstream is a local chat-completions stand-in for running the
// gateway without a provider key. Set FAIL_MODELS to a comma separated list of
// model ids that should return 503, to exercise the fallback path.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	failing := map[string]bool{}
	for _, m := range strings.Split(os.Getenv("FAIL_MODELS"), ",") {
		if m = strings.TrimSpace(m); m != "" {
			failing[m] = true
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}

	http.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}

		model := gjson.GetBytes(body, "model").String()
		messages := gjson.GetBytes(body, "messages").Array()
		log.Info().
			Str("model", model).
			Int("messages", len(messages)).
			Msg("received completion request")

		w.Header().Set("Content-Type", "application/json")
		if failing[model] {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
			return
		}

		last := ""
		if len(messages) > 0 {
			last = messages[len(messages)-1].Get("content").String()
		}

		resp := `{"object":"chat.completion"}`
		resp, _ = sjson.Set(resp, "id", "chatcmpl-"+uuid.NewString())
		resp, _ = sjson.Set(resp, "model", model)
		resp, _ = sjson.Set(resp, "choices.0.index", 0)
		resp, _ = sjson.Set(resp, "choices.0.message.role", "assistant")
		resp, _ = sjson.Set(resp, "choices.0.message.content", "Let's work through it step by step. You asked: "+last)
		w.Write([]byte(resp))
	})

	log.Info().Str("port", port).Msg("fake upstream starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal().Err(err).Msg("fake upstream failed")
	}
}
