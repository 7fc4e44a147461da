package services

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	apperrors "github.com/StoryMosaic/StoryStudio/internal/errors"
	"github.com/StoryMosaic/StoryStudio/internal/llm"
)

// 可编程的测试提供者：回复函数与调用计数由测试用例控制
var (
	fakeReply func(req llm.CompletionRequest) (string, error)
	fakeCalls int
)

type fakeProvider struct{}

func (fakeProvider) Initialize(map[string]string) error { return nil }
func (fakeProvider) GetName() string                    { return "fake" }
func (fakeProvider) GetSupportedModels() []string       { return []string{"fake-1"} }

func (fakeProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	fakeCalls++
	text, err := fakeReply(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: text, ProviderName: "fake"}, nil
}

func init() {
	llm.Register("fake", func() llm.Provider { return fakeProvider{} })
}

func newFakeLLM(t *testing.T, reply func(req llm.CompletionRequest) (string, error)) *LLMService {
	t.Helper()
	fakeReply = reply
	fakeCalls = 0
	s, err := NewLLMService("fake", map[string]string{"api_key": "test-key"})
	if err != nil {
		t.Fatalf("创建测试LLM服务失败: %v", err)
	}
	return s
}

func TestLLMServiceReadiness(t *testing.T) {
	Convey("LLM服务就绪状态", t, func() {
		Convey("没有API密钥时降级为未就绪，不报错", func() {
			s, err := NewLLMService("fake", map[string]string{})
			So(err, ShouldBeNil)
			So(s.IsReady(), ShouldBeFalse)
			So(s.GetReadyState(), ShouldEqual, "未配置API密钥")
		})

		Convey("未知提供者降级为未就绪", func() {
			s, err := NewLLMService("nonesuch", map[string]string{"api_key": "k"})
			So(err, ShouldBeNil)
			So(s.IsReady(), ShouldBeFalse)
		})

		Convey("未就绪的服务调用时上抛 UpstreamError", func() {
			s := NewEmptyLLMService()
			_, err := s.GenerateText(context.Background(), "xin chào")
			So(apperrors.IsUpstreamError(err), ShouldBeTrue)
			So(errors.Is(err, ErrLLMNotReady), ShouldBeTrue)
		})

		Convey("配置齐全时就绪", func() {
			s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) { return "ok", nil })
			So(s.IsReady(), ShouldBeTrue)
			So(s.GetReadyState(), ShouldEqual, "ready")
			So(s.GetProviderName(), ShouldEqual, "fake")
		})
	})
}

func TestGenerateStructured(t *testing.T) {
	Convey("GenerateStructured 结构化生成", t, func() {
		Convey("干净JSON直接解析", func() {
			s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) {
				return `[{"title": "PA1"}]`, nil
			})
			value, err := s.GenerateStructured(context.Background(), "p")
			So(err, ShouldBeNil)

			list, ok := value.([]interface{})
			So(ok, ShouldBeTrue)
			So(list, ShouldHaveLength, 1)
		})

		Convey("围栏代码块里的JSON也能抽出", func() {
			s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) {
				return "Đây là kết quả:\n```json\n{\"scene\": \"Sân luyện\"}\n```\nHết.", nil
			})
			value, err := s.GenerateStructured(context.Background(), "p")
			So(err, ShouldBeNil)

			m, ok := value.(map[string]interface{})
			So(ok, ShouldBeTrue)
			So(m["scene"], ShouldEqual, "Sân luyện")
		})

		Convey("完全不是JSON时返回 RawResponse 哨兵而不是错误", func() {
			s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) {
				return "chỉ là văn xuôi thôi", nil
			})
			value, err := s.GenerateStructured(context.Background(), "p")
			So(err, ShouldBeNil)

			raw, ok := value.(RawResponse)
			So(ok, ShouldBeTrue)
			So(raw.Raw, ShouldEqual, "chỉ là văn xuôi thôi")
		})

		Convey("上游错误原样上抛", func() {
			s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) {
				return "", errors.New("quota exceeded")
			})
			_, err := s.GenerateStructured(context.Background(), "p")
			So(apperrors.IsUpstreamError(err), ShouldBeTrue)
		})
	})
}

func TestCreateStructuredCompletion(t *testing.T) {
	Convey("CreateStructuredCompletion 直接解析到目标结构", t, func() {
		type reply struct {
			Scene string `json:"scene"`
		}

		Convey("成功解析", func() {
			s := newFakeLLM(t, func(req llm.CompletionRequest) (string, error) {
				So(req.JSONMode, ShouldBeTrue)
				return `{"scene": "Hậu sơn"}`, nil
			})
			var out reply
			So(s.CreateStructuredCompletion(context.Background(), "p", "", &out), ShouldBeNil)
			So(out.Scene, ShouldEqual, "Hậu sơn")
		})

		Convey("形态不符上抛 UpstreamError，不触碰输出", func() {
			s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) {
				return "không phải JSON", nil
			})
			out := reply{Scene: "giữ nguyên"}
			err := s.CreateStructuredCompletion(context.Background(), "p", "", &out)
			So(apperrors.IsUpstreamError(err), ShouldBeTrue)
			So(out.Scene, ShouldEqual, "giữ nguyên")
		})
	})
}

func TestLLMCache(t *testing.T) {
	Convey("同一提示词的重复调用走缓存", t, func() {
		s := newFakeLLM(t, func(llm.CompletionRequest) (string, error) { return "văn bản", nil })

		first, err := s.GenerateText(context.Background(), "prompt giống nhau")
		So(err, ShouldBeNil)
		second, err := s.GenerateText(context.Background(), "prompt giống nhau")
		So(err, ShouldBeNil)

		So(first, ShouldEqual, second)
		So(fakeCalls, ShouldEqual, 1)

		Convey("不同提示词不会串缓存", func() {
			_, err := s.GenerateText(context.Background(), "prompt khác")
			So(err, ShouldBeNil)
			So(fakeCalls, ShouldEqual, 2)
		})
	})
}

func TestCleanLLMJSONResponse(t *testing.T) {
	Convey("JSON清洗", t, func() {
		Convey("去掉围栏与前后行文", func() {
			So(CleanLLMJSONResponse("```json\n{\"a\": 1}\n```"), ShouldEqual, `{"a": 1}`)
			So(CleanLLMJSONResponse("Kết quả: [1, 2, 3] xong"), ShouldEqual, "[1, 2, 3]")
		})

		Convey("括号计数取第一个完整JSON值", func() {
			So(CleanLLMJSONResponse(`{"a": {"b": 2}} {"c": 3}`), ShouldEqual, `{"a": {"b": 2}}`)
		})

		Convey("字符串里的括号不参与计数", func() {
			So(CleanLLMJSONResponse(`{"a": "dấu } trong chuỗi"}`), ShouldEqual, `{"a": "dấu } trong chuỗi"}`)
		})

		Convey("BOM与零宽字符被剔除", func() {
			So(CleanLLMJSONResponse("\ufeff{\"a\":\u200b1}"), ShouldEqual, `{"a":1}`)
		})

		Convey("截断的JSON回退到最后一个闭合符", func() {
			So(CleanLLMJSONResponse(`{"a": {"b": 2} còn thiếu`), ShouldEqual, `{"a": {"b": 2}`)
		})

		Convey("没有任何JSON返回空串", func() {
			So(CleanLLMJSONResponse("chỉ là văn xuôi"), ShouldBeBlank)
			So(CleanLLMJSONResponse(""), ShouldBeBlank)
		})
	})
}
