package app

import "context"

// FanoutSink forwards every answer event to each sink in order.
type FanoutSink []AnswerSink

func (f FanoutSink) QuestionAnswered(ctx context.Context, correct bool, subject string) {
	for _, sink := range f {
		if sink != nil {
			sink.QuestionAnswered(ctx, correct, subject)
		}
	}
}
