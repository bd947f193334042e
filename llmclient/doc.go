// Package llmclient provides a small gateway to OpenAI-compatible
// chat-completions endpoints with request pacing and tool calling.
//
// # Overview
//
// The package exposes one interface, Client, and one implementation,
// ModelClient. ModelClient serializes requests through a single slot
// and enforces a minimum interval between them, so a busy agent loop
// cannot exceed the provider's rate limit no matter how many
// goroutines share the client.
//
// Gemini is reached through its OpenAI-compatible endpoint, so both
// supported backends share the same adapter and differ only in their
// default base URL and model.
//
// # Quick Start
//
//	client, err := llmclient.NewModelClient(llmclient.Config{
//		Backend: llmclient.BackendOpenAI,
//		APIKey:  key,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	resp, err := client.Generate(ctx, llmclient.GenerateRequest{
//		Messages: []llmclient.Message{
//			{Role: llmclient.RoleUser, Content: "hello"},
//		},
//	})
//
// Responses keep Content as raw JSON because providers return null, a
// string, or a list of typed parts; callers flatten it to text with
// whatever policy suits them.
//
// # Errors
//
// Failures are typed. Authentication, rate-limit and invalid-request
// conditions get their own types so callers can branch on them with
// errors.As; everything else surfaces as a ProviderError carrying the
// HTTP status when one was observed.
package llmclient
