package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"safetalk.app/mediator/internal/brain"
	"safetalk.app/mediator/internal/http/middleware"
	httprouter "safetalk.app/mediator/internal/http/router"
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
)

var crisisGuidance = &safety.Guidance{
	Level: safety.GuidanceCrisis,
	Title: "You don't have to face this alone",
	Resources: []safety.Resource{
		{Name: "Crisis line", Phone: "988"},
	},
}

var _ = Describe("QuestionHandler", func() {
	var (
		router *gin.Engine
		orch   *mockOrchestrator
	)

	const asker = int64(101)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		router.Use(middleware.Recovery())
		orch = &mockOrchestrator{}
		httprouter.SetupRoutes(router, orch, httprouter.RouterConfig{})
	})

	do := func(method, path string, userID int64, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if userID != 0 {
			req.Header.Set(middleware.UserIDHeader, fmt.Sprint(userID))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("identity", func() {
		It("rejects requests without X-User-ID", func() {
			w := do(http.MethodGet, "/api/v1/questions/1/status", 0, nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a malformed X-User-ID", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/questions/1/status", nil)
			req.Header.Set(middleware.UserIDHeader, "sam")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("leaves /health open", func() {
			w := do(http.MethodGet, "/health", 0, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("POST /api/v1/questions", func() {
		It("returns 201 with the question", func() {
			orch.submitFn = func(_ context.Context, askerID int64, text string) (*brain.SubmitResult, error) {
				Expect(askerID).To(Equal(asker))
				return &brain.SubmitResult{Question: &model.Question{
					ID: 7, AskerID: askerID, PartnerID: 202, Text: text, Status: model.QuestionStatusClarifying,
				}}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions", asker, map[string]string{"text": "Why is Alex quiet lately?"})

			Expect(w.Code).To(Equal(http.StatusCreated))
			resp := decode(w)
			Expect(resp["escalated"]).To(BeFalse())
			question := resp["question"].(map[string]any)
			Expect(question["id"]).To(Equal("7"))
			Expect(question["status"]).To(Equal("clarifying"))
		})

		It("returns 200 with guidance when the question is escalated", func() {
			orch.submitFn = func(context.Context, int64, string) (*brain.SubmitResult, error) {
				return &brain.SubmitResult{
					Question:  &model.Question{ID: 8, Status: model.QuestionStatusRedFlag, RedFlagDetected: true},
					Escalated: true,
					Guidance:  crisisGuidance,
				}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions", asker, map[string]string{"text": "I feel hopeless"})

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["escalated"]).To(BeTrue())
			Expect(resp["guidance"]).To(HaveKeyWithValue("level", "crisis"))
		})

		It("returns 400 for an empty question", func() {
			w := do(http.MethodPost, "/api/v1/questions", asker, map[string]string{"text": ""})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 409 when the asker has no partner", func() {
			orch.submitFn = func(context.Context, int64, string) (*brain.SubmitResult, error) {
				return nil, brain.ErrNoPartner
			}

			w := do(http.MethodPost, "/api/v1/questions", asker, map[string]string{"text": "hello"})

			Expect(w.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("POST /api/v1/questions/:id/dialog/:role", func() {
		It("opens the dialog when the body is empty", func() {
			orch.advanceFn = func(_ context.Context, req brain.AdvanceRequest) (*brain.AdvanceResult, error) {
				Expect(req.Text).To(BeNil())
				Expect(req.Role).To(Equal(model.RoleAsker))
				Expect(req.QuestionID).To(Equal(int64(7)))
				return &brain.AdvanceResult{AssistantText: "Thanks for sharing. What prompted this?"}, nil
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/7/dialog/asker", nil)
			req.Header.Set(middleware.UserIDHeader, fmt.Sprint(asker))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["assistant_text"]).To(ContainSubstring("What prompted this"))
		})

		It("passes the turn text through", func() {
			orch.advanceFn = func(_ context.Context, req brain.AdvanceRequest) (*brain.AdvanceResult, error) {
				Expect(req.Text).NotTo(BeNil())
				Expect(*req.Text).To(Equal("they skipped dinner again"))
				return &brain.AdvanceResult{AssistantText: "How did that feel?", Exchanges: 1}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions/7/dialog/asker", asker, map[string]string{"text": "they skipped dinner again"})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["exchanges"]).To(BeNumerically("==", 1))
		})

		It("returns 200 with guidance on an escalated turn", func() {
			orch.advanceFn = func(context.Context, brain.AdvanceRequest) (*brain.AdvanceResult, error) {
				return &brain.AdvanceResult{Escalated: true, Guidance: crisisGuidance}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions/7/dialog/partner", 202, map[string]string{"text": "I want to disappear"})

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["escalated"]).To(BeTrue())
			Expect(resp).To(HaveKey("guidance"))
			Expect(resp).NotTo(HaveKey("assistant_text"))
		})

		It("rejects an unknown role", func() {
			w := do(http.MethodPost, "/api/v1/questions/7/dialog/mediator", asker, map[string]string{"text": "hi"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a non-numeric question id", func() {
			w := do(http.MethodPost, "/api/v1/questions/abc/dialog/asker", asker, nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 503 with retryable for a transient failure", func() {
			orch.advanceFn = func(context.Context, brain.AdvanceRequest) (*brain.AdvanceResult, error) {
				return nil, &brain.Error{Kind: brain.KindTransient, Err: errors.New("model timeout")}
			}

			w := do(http.MethodPost, "/api/v1/questions/7/dialog/asker", asker, map[string]string{"text": "hi"})

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			resp := decode(w)
			Expect(resp["retryable"]).To(BeTrue())
			Expect(resp["kind"]).To(Equal("transient"))
			Expect(resp["error"]).NotTo(ContainSubstring("model timeout"))
		})

		It("returns 409 for an out-of-phase call", func() {
			orch.advanceFn = func(context.Context, brain.AdvanceRequest) (*brain.AdvanceResult, error) {
				return nil, &brain.Error{Kind: brain.KindInvariant, Err: brain.ErrWrongPhase}
			}

			w := do(http.MethodPost, "/api/v1/questions/7/dialog/partner", 202, map[string]string{"text": "hi"})

			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("returns 403 when the caller does not hold the role", func() {
			orch.advanceFn = func(context.Context, brain.AdvanceRequest) (*brain.AdvanceResult, error) {
				return nil, brain.ErrForbidden
			}

			w := do(http.MethodPost, "/api/v1/questions/7/dialog/partner", asker, map[string]string{"text": "hi"})

			Expect(w.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("GET /api/v1/questions/:id/status", func() {
		It("returns the derived status", func() {
			orch.statusFn = func(_ context.Context, qid, userID int64) (*brain.StatusView, error) {
				return &brain.StatusView{QuestionID: qid, Status: model.QuestionStatusPartnerReflecting, AskerExchanges: 3}, nil
			}

			w := do(http.MethodGet, "/api/v1/questions/7/status", asker, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["status"]).To(Equal("partner_reflecting"))
			Expect(resp["question_id"]).To(Equal("7"))
		})

		It("returns 404 for an unknown question", func() {
			orch.statusFn = func(context.Context, int64, int64) (*brain.StatusView, error) {
				return nil, fmt.Errorf("loading question: %w", brain.ErrNotFound)
			}

			w := do(http.MethodGet, "/api/v1/questions/9/status", asker, nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/v1/questions/:id/insight", func() {
		It("returns the three sections", func() {
			orch.insightFn = func(_ context.Context, qid, _ int64) (*model.Insight, error) {
				return &model.Insight{
					ID: 70, QuestionID: qid,
					EmotionalSummary:  "Alex feels stretched thin.",
					ContextualSummary: "Work has been heavy.",
					SuggestedAction:   "Offer a quiet evening.",
				}, nil
			}

			w := do(http.MethodGet, "/api/v1/questions/7/insight", asker, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["emotional_summary"]).To(Equal("Alex feels stretched thin."))
			Expect(resp["suggested_action"]).To(Equal("Offer a quiet evening."))
		})
	})

	Describe("GET /api/v1/questions/:id/dialog/:role", func() {
		It("returns an empty transcript as an empty list", func() {
			orch.transcriptFn = func(_ context.Context, qid, _ int64, role model.Role) (*model.ReflectionLog, error) {
				return &model.ReflectionLog{QuestionID: qid, Role: role}, nil
			}

			w := do(http.MethodGet, "/api/v1/questions/7/dialog/asker", asker, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["turns"]).To(BeEmpty())
		})
	})

	Describe("POST /api/v1/questions/:id/partner/complete", func() {
		It("returns the insight", func() {
			orch.completeFn = func(_ context.Context, qid int64, userID *int64) (*model.Insight, error) {
				Expect(userID).NotTo(BeNil())
				Expect(*userID).To(Equal(int64(202)))
				return &model.Insight{ID: 70, QuestionID: qid, EmotionalSummary: "e", ContextualSummary: "c", SuggestedAction: "s"}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions/7/partner/complete", 202, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)).To(HaveKey("insight"))
		})

		It("returns guidance when a red flag closed the question first", func() {
			orch.completeFn = func(context.Context, int64, *int64) (*model.Insight, error) {
				return nil, &brain.Error{Kind: brain.KindInvariant, Err: brain.ErrFlagged}
			}
			orch.statusFn = func(_ context.Context, qid, _ int64) (*brain.StatusView, error) {
				return &brain.StatusView{QuestionID: qid, Status: model.QuestionStatusRedFlag, RedFlagDetected: true, Guidance: crisisGuidance}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions/7/partner/complete", 202, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp).To(HaveKey("guidance"))
			Expect(resp).NotTo(HaveKey("insight"))
		})

		It("returns 503 when the model output was malformed", func() {
			orch.completeFn = func(context.Context, int64, *int64) (*model.Insight, error) {
				return nil, &brain.Error{Kind: brain.KindMalformedOutput, Err: errors.New("missing sections")}
			}

			w := do(http.MethodPost, "/api/v1/questions/7/partner/complete", 202, nil)

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(decode(w)["kind"]).To(Equal("malformed_output"))
		})
	})

	Describe("POST /api/v1/questions/:id/decline", func() {
		It("returns the rejected question", func() {
			orch.declineFn = func(_ context.Context, qid, _ int64) (*model.Question, error) {
				return &model.Question{ID: qid, Status: model.QuestionStatusRejected}, nil
			}

			w := do(http.MethodPost, "/api/v1/questions/7/decline", 202, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["status"]).To(Equal("rejected"))
		})
	})

	It("recovers from a panicking orchestrator", func() {
		orch.statusFn = func(context.Context, int64, int64) (*brain.StatusView, error) {
			panic("boom")
		}

		w := do(http.MethodGet, "/api/v1/questions/7/status", asker, nil)

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
	})
})
