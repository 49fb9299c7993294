package main

import (
	"github.com/nimec77/deepseek-agents/internal/domain/task"
	id "github.com/nimec77/deepseek-agents/internal/shared/utils/id"
)

const demoInput = "Go is an open source programming language that makes it simple to build " +
	"secure, scalable systems. It was designed at Google to improve productivity in an era " +
	"of multicore, networked machines and large codebases."

// demoTask is run when no task file is given.
func demoTask() task.Spec {
	return task.Spec{
		TaskID:             id.NewTaskID(),
		Goal:               "Summarize the input text in exactly 3 bullet points.",
		Input:              demoInput,
		AcceptanceCriteria: []string{"exactly 3 bullets", "<=80 words", "no marketing fluff"},
		DeliverableType:    task.DeliverableText,
		Hints:              "Use plain, neutral language.",
	}
}
