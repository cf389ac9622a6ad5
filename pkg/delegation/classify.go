// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package delegation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// ResponseEvent is the closed set of shapes a remote executor may produce in
// response to a delegated message. Exactly three cases exist: a terminal
// message, a task progress record, or an opaque fallback for anything the
// classifier does not recognize. Unrecognized events are preserved verbatim
// rather than dropped, so no remote response is ever silently swallowed.
type ResponseEvent interface {
	// Text extracts the textual content of the event. Task updates
	// synthesize a short descriptive tag since task records carry no
	// freeform text; opaque events render their raw payload and are never
	// empty.
	Text() string

	isResponseEvent()
}

// FinalMessage is a complete, terminal response message from the executor.
type FinalMessage struct {
	Message *a2a.Message
}

// TaskUpdate is a progress record for a long-running unit of work. Update is
// nil when the event merely confirms task creation.
type TaskUpdate struct {
	Task   *a2a.Task
	Update a2a.Event
}

// Opaque wraps an event whose shape the classifier does not recognize.
type Opaque struct {
	Raw json.RawMessage
}

func (FinalMessage) isResponseEvent() {}
func (TaskUpdate) isResponseEvent()   {}
func (Opaque) isResponseEvent()       {}

// Text returns the first text part of the message, or "" when the message
// carries no text.
func (e FinalMessage) Text() string {
	if e.Message == nil {
		return ""
	}
	return firstTextPart(e.Message.Parts)
}

// Text synthesizes a bracketed tag identifying the update kind and task state.
func (e TaskUpdate) Text() string {
	switch update := e.Update.(type) {
	case *a2a.TaskStatusUpdateEvent:
		return fmt.Sprintf("[status-update: %s]", strings.ToLower(string(update.Status.State)))
	case *a2a.TaskArtifactUpdateEvent:
		return "[artifact-update]"
	}
	if e.Task != nil {
		return fmt.Sprintf("[task %s: %s]", e.Task.ID, strings.ToLower(string(e.Task.Status.State)))
	}
	return "[task-update]"
}

// Text renders the raw payload. Never returns "" so that an unrecognized
// response is visible downstream instead of reading as "no response".
func (e Opaque) Text() string {
	s := strings.TrimSpace(string(e.Raw))
	if s == "" {
		return "[unrecognized response]"
	}
	return s
}

// Classify maps one raw response event to a ResponseEvent. Pure mapping, no
// I/O. Events are discriminated by their "kind" field the same way parts are;
// anything that fails to discriminate or decode degrades to Opaque.
func Classify(raw json.RawMessage) ResponseEvent {
	var peek struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return Opaque{Raw: raw}
	}

	switch peek.Kind {
	case "message":
		var msg a2a.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Opaque{Raw: raw}
		}
		return FinalMessage{Message: &msg}

	case "task":
		var task a2a.Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return Opaque{Raw: raw}
		}
		return TaskUpdate{Task: &task}

	case "status-update":
		var update a2a.TaskStatusUpdateEvent
		if err := json.Unmarshal(raw, &update); err != nil {
			return Opaque{Raw: raw}
		}
		return TaskUpdate{
			Task: &a2a.Task{
				ID:        update.TaskID,
				ContextID: update.ContextID,
				Status:    update.Status,
			},
			Update: &update,
		}

	case "artifact-update":
		var update a2a.TaskArtifactUpdateEvent
		if err := json.Unmarshal(raw, &update); err != nil {
			return Opaque{Raw: raw}
		}
		return TaskUpdate{
			Task: &a2a.Task{
				ID:        update.TaskID,
				ContextID: update.ContextID,
			},
			Update: &update,
		}

	default:
		return Opaque{Raw: raw}
	}
}

// firstTextPart scans parts in order and returns the first text content found.
func firstTextPart(parts []a2a.Part) string {
	for _, part := range parts {
		switch p := part.(type) {
		case a2a.TextPart:
			return p.Text
		case *a2a.TextPart:
			return p.Text
		}
	}
	return ""
}
