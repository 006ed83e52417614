package llm

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openai/openai-go"
)

var _ = Describe("NewClient", func() {
	It("requires an API key", func() {
		_, err := NewClient(Config{Provider: ProviderOpenAI})
		Expect(err).To(MatchError(ContainSubstring("API key is required")))
	})

	It("rejects unknown providers", func() {
		_, err := NewClient(Config{Provider: "cohere", APIKey: "k"})
		Expect(err).To(MatchError(ContainSubstring("unsupported LLM provider")))
	})

	DescribeTable("applies provider default models",
		func(provider, expected string) {
			c, err := NewClient(Config{Provider: provider, APIKey: "k"})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Model()).To(Equal(expected))
		},
		Entry("openai", ProviderOpenAI, "gpt-4o"),
		Entry("anthropic", ProviderAnthropic, "claude-sonnet-4-5-20250929"),
		Entry("empty defaults to openai", "", "gpt-4o"),
	)
})

var _ = Describe("convertAnthropicMessages", func() {
	It("joins consecutive messages of the same role", func() {
		msgs := convertAnthropicMessages([]Message{
			{Role: RoleUser, Content: "My question"},
			{Role: RoleUser, Content: "More detail"},
			{Role: RoleAssistant, Content: "Thanks for sharing"},
		})
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Role).To(Equal(anthropic.MessageParamRoleUser))
		Expect(msgs[0].Content[0].OfText.Text).To(Equal("My question\n\nMore detail"))
		Expect(msgs[1].Role).To(Equal(anthropic.MessageParamRoleAssistant))
	})

	It("starts with a user turn when history opens with the assistant", func() {
		msgs := convertAnthropicMessages([]Message{
			{Role: RoleAssistant, Content: "Hi, I'm here to help."},
		})
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Role).To(Equal(anthropic.MessageParamRoleUser))
	})
})

var _ = Describe("convertOpenAIMessages", func() {
	It("puts the system prompt first", func() {
		msgs := convertOpenAIMessages("be kind", []Message{
			{Role: RoleUser, Content: "hello"},
			{Role: RoleAssistant, Content: "hi"},
		})
		Expect(msgs).To(HaveLen(3))
		Expect(msgs[0].OfSystem).NotTo(BeNil())
		Expect(msgs[1].OfUser).NotTo(BeNil())
		Expect(msgs[2].OfAssistant).NotTo(BeNil())
	})
})

var _ = Describe("IsRetryable", func() {
	ctx := context.Background()

	It("is false for nil", func() {
		Expect(IsRetryable(ctx, nil)).To(BeFalse())
	})

	It("treats cancellation as final", func() {
		Expect(IsRetryable(ctx, context.Canceled)).To(BeFalse())
	})

	It("treats a timeout as transient", func() {
		Expect(IsRetryable(ctx, context.DeadlineExceeded)).To(BeTrue())
	})

	It("retries empty completions", func() {
		Expect(IsRetryable(ctx, ErrEmptyCompletion)).To(BeTrue())
	})

	DescribeTable("classifies provider status codes",
		func(err error, expected bool) {
			Expect(IsRetryable(ctx, err)).To(Equal(expected))
		},
		Entry("openai 429", &openai.Error{StatusCode: 429}, true),
		Entry("openai 503", &openai.Error{StatusCode: 503}, true),
		Entry("openai 400", &openai.Error{StatusCode: 400}, false),
		Entry("anthropic 529", &anthropic.Error{StatusCode: 529}, true),
		Entry("anthropic 401", &anthropic.Error{StatusCode: 401}, false),
	)

	It("retries plain network errors", func() {
		Expect(IsRetryable(ctx, errors.New("connection reset by peer"))).To(BeTrue())
	})
})
