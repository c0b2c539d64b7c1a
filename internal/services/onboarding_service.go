package services

import (
	"context"
	"strings"
	"sync"

	"github.com/yoockh/aibuddy/internal/utils"
)

type OnboardingStep string

const (
	StepName       OnboardingStep = "name"
	StepCountry    OnboardingStep = "country"
	StepOccupation OnboardingStep = "occupation"
	StepInterests  OnboardingStep = "interests"
	StepPassion    OnboardingStep = "passion"
	StepFinished   OnboardingStep = "finished"
)

var onboardingOrder = []OnboardingStep{StepName, StepCountry, StepOccupation, StepInterests, StepPassion, StepFinished}

// fact key stored for each answered step
var onboardingFactKeys = map[OnboardingStep]string{
	StepName:       "name",
	StepCountry:    "country",
	StepOccupation: "occupation",
	StepInterests:  "interests",
	StepPassion:    "passion",
}

type OnboardingService interface {
	Current() OnboardingStep
	// Submit answers the current step and returns the next one. Blank answers
	// advance without storing a fact.
	Submit(ctx context.Context, step OnboardingStep, values []string) (OnboardingStep, error)
	Reset()
}

type onboardingService struct {
	ctxStore ContextService

	mu   sync.Mutex
	step OnboardingStep
}

func NewOnboardingService(ctxStore ContextService) OnboardingService {
	return &onboardingService{ctxStore: ctxStore, step: StepName}
}

func (s *onboardingService) Current() OnboardingStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *onboardingService) Reset() {
	s.mu.Lock()
	s.step = StepName
	s.mu.Unlock()
}

func (s *onboardingService) Submit(ctx context.Context, step OnboardingStep, values []string) (OnboardingStep, error) {
	const op = "OnboardingService.Submit"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step == StepFinished {
		return s.step, utils.E(utils.CodeConflict, op, "onboarding already finished", nil)
	}
	if step != s.step {
		return s.step, utils.E(utils.CodeInvalidArgument, op, "expected step "+string(s.step), nil)
	}

	if answer := joinAnswers(step, values); answer != "" {
		if _, err := s.ctxStore.AddFact(ctx, onboardingFactKeys[step], answer); err != nil {
			return s.step, utils.E(utils.CodeInternal, op, "failed to store answer", err)
		}
	}

	s.step = nextStep(step)
	return s.step, nil
}

func joinAnswers(step OnboardingStep, values []string) string {
	var kept []string
	seen := map[string]bool{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return ""
	}
	if step == StepInterests {
		return strings.Join(kept, ", ")
	}
	return kept[0]
}

func nextStep(step OnboardingStep) OnboardingStep {
	for i, s := range onboardingOrder {
		if s == step && i+1 < len(onboardingOrder) {
			return onboardingOrder[i+1]
		}
	}
	return StepFinished
}

// ParseOnboardingStep accepts a step name from the API.
func ParseOnboardingStep(raw string) (OnboardingStep, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, s := range onboardingOrder {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}
