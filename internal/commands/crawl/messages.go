package crawlcmd

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const crawlProjectsMessageType = "rundgang.projects.crawl"

// Crawl triggers.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerManual   = "manual"
)

// CrawlProjectsCommand requests one crawl of the space graph.
type CrawlProjectsCommand struct {
	Trigger string `json:"trigger"`
	Reason  string `json:"reason,omitempty"`
}

// Type implements command.Message.
func (CrawlProjectsCommand) Type() string { return crawlProjectsMessageType }

// Validate ensures the trigger is known.
func (m CrawlProjectsCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Trigger, validation.Required, validation.In(TriggerSchedule, TriggerStartup, TriggerManual)),
		validation.Field(&m.Reason, validation.Length(0, 200)),
	)
}
