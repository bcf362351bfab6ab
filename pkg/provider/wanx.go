package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"dreamer/pkg/poll"
)

const (
	DashScopeBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	wanxModel        = "wanx-v1"
)

// Wanx generates images through DashScope's asynchronous text-to-image API.
// Submit only returns a task id.
//
// Status classification (output.task_status):
//
//	SUCCEEDED          -> succeeded, URL from output.results[0].url
//	FAILED, CANCELED   -> failed
//	anything else      -> pending (PENDING, RUNNING, UNKNOWN)
type Wanx struct {
	opts Options
}

func NewWanx(opts Options) *Wanx {
	return &Wanx{opts: opts.withDefaults(DashScopeBaseURL, wanxModel)}
}

func (w *Wanx) Name() string { return "wanx" }
func (w *Wanx) Kind() Kind   { return Image }

type wanxSubmit struct {
	Model string `json:"model"`
	Input struct {
		Prompt string `json:"prompt"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size"`
		N    int    `json:"n"`
	} `json:"parameters"`
}

type wanxTask struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Results    []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
}

func (w *Wanx) Submit(ctx context.Context, req Request) (Submission, error) {
	if err := Validate(Image, req); err != nil {
		return Submission{}, err
	}
	if err := requireKey(w.opts, "image.api_key"); err != nil {
		return Submission{}, err
	}

	var body wanxSubmit
	body.Model = w.opts.Model
	body.Input.Prompt = req.Prompt + dreamStyle
	body.Parameters.Size = "1024*1024"
	body.Parameters.N = 1

	header := http.Header{}
	header.Set("X-DashScope-Async", "enable")

	data, err := doJSON(ctx, w.opts, w.Name(), http.MethodPost,
		w.opts.BaseURL+"/services/aigc/text2image/image-synthesis", body, header)
	if err != nil {
		return Submission{}, err
	}

	var task wanxTask
	if err := json.Unmarshal(data, &task); err != nil || task.Output.TaskID == "" {
		return Submission{}, malformed(w.Name(), data, "output.task_id missing")
	}
	return Submission{Mode: Pending, TaskID: task.Output.TaskID}, nil
}

func (w *Wanx) Status(ctx context.Context, taskID string) ([]byte, error) {
	if err := requireKey(w.opts, "image.api_key"); err != nil {
		return nil, err
	}
	return doJSON(ctx, w.opts, w.Name(), http.MethodGet, w.opts.BaseURL+"/tasks/"+url.PathEscape(taskID), nil, nil)
}

func (w *Wanx) Classify(payload []byte) poll.Status {
	var task wanxTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return poll.Status{State: poll.Pending, Raw: "unreadable"}
	}
	st := poll.Status{Raw: task.Output.TaskStatus}
	switch task.Output.TaskStatus {
	case "SUCCEEDED":
		st.State = poll.Succeeded
		for _, r := range task.Output.Results {
			if r.URL != "" {
				st.URL = r.URL
				break
			}
		}
	case "FAILED", "CANCELED":
		st.State = poll.Failed
	default:
		st.State = poll.Pending
	}
	return st
}
