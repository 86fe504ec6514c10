// Package llm provides generative language model providers for transaction
// categorization. It supports Anthropic and OpenAI, with retry logic, rate
// limiting, response caching and lenient parsing of model output.
package llm
