// Package llm talks to the Gemini generateContent API for receipt line
// classification. It provides the REST client, prompt builders, response
// parsers with JSON schema checks, a per-receipt call budget, a requests per
// minute limiter and a response cache.
package llm
