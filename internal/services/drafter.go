package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/quickapply/backend/internal/models"
)

const (
	maxPostChars       = 2000
	draftTemperature   = 0.35
	rewriteTemperature = 0.4
	maxDraftTokens     = 512
)

var codeFence = regexp.MustCompile("(?i)```(?:markdown)?")

// NewChatModel connects to an OpenAI-compatible chat completion API (Groq by default).
// It returns nil, nil when no API key is configured.
func NewChatModel(apiKey, baseURL, model string) (llms.Model, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create chat model")
	}
	return llm, nil
}

// Draft is a generated application email.
type Draft struct {
	Subject      string
	BodyMarkdown string
}

type Drafter struct {
	model    llms.Model
	testMode bool
}

// NewDrafter accepts a nil model; every generation then fails with ErrUpstreamUnavailable
// unless testMode is set.
func NewDrafter(model llms.Model, testMode bool) *Drafter {
	return &Drafter{model: model, testMode: testMode}
}

func (d *Drafter) Draft(ctx context.Context, prof *models.Profile, postText, role string) (*Draft, error) {
	if d.testMode {
		return templateDraft(prof, role), nil
	}
	if d.model == nil {
		return nil, errors.Wrap(ErrUpstreamUnavailable, "llm api key not configured")
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, d.model, draftPrompt(prof, postText, role),
		llms.WithTemperature(draftTemperature),
		llms.WithMaxTokens(maxDraftTokens),
	)
	if err != nil {
		log.Printf("[GenerateDraft] role=%s error=%v", role, err)
		return nil, errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	return parseDraft(out, role), nil
}

func (d *Drafter) Rewrite(ctx context.Context, currentEmail, instruction string) (string, error) {
	if d.testMode {
		return fmt.Sprintf("%s\n\n[Rewritten with: %q]", currentEmail, instruction), nil
	}
	if d.model == nil {
		return "", errors.Wrap(ErrUpstreamUnavailable, "llm api key not configured")
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, d.model, rewritePrompt(currentEmail, instruction),
		llms.WithTemperature(rewriteTemperature),
		llms.WithMaxTokens(maxDraftTokens),
	)
	if err != nil {
		log.Printf("[RewriteDraft] error=%v", err)
		return "", errors.Wrap(ErrUpstreamUnavailable, err.Error())
	}
	return strings.TrimSpace(codeFence.ReplaceAllString(out, "")), nil
}

// parseDraft takes the first non-empty line as the subject and the rest as the body.
func parseDraft(raw, role string) *Draft {
	raw = codeFence.ReplaceAllString(raw, "")
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	subject := ""
	rest := 0
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			subject = strings.TrimSpace(l)
			rest = i + 1
			break
		}
	}
	if subject == "" {
		return &Draft{Subject: defaultSubject(role)}
	}

	subject = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(subject, "Subject:"), "SUBJECT:"))
	subject = strings.Trim(subject, `*"`)
	body := strings.TrimSpace(strings.Join(lines[rest:], "\n"))
	return &Draft{Subject: subject, BodyMarkdown: body}
}

func defaultSubject(role string) string {
	return "Application for - " + role
}

func templateDraft(p *models.Profile, role string) *Draft {
	body := fmt.Sprintf(`Dear Hiring Manager,

I am %s, currently working as a %s with expertise in %s. %s

I noticed your opening for the **%s** and I have hands-on experience in this area through projects and roles aligned to this work.

My resume and portfolio are linked below. If you'd like more details or to schedule a call, please contact me.

Best regards,
%s`, p.FullName, p.CurrentRole, p.Skills, p.Bio, role, p.FullName)
	return &Draft{Subject: defaultSubject(role), BodyMarkdown: body}
}

func draftPrompt(p *models.Profile, postText, role string) string {
	if r := []rune(postText); len(r) > maxPostChars {
		postText = string(r[:maxPostChars])
	}
	return fmt.Sprintf(`You are a professional career assistant.

Produce two outputs separated clearly and with no extra commentary:
1) A single-line SUBJECT suitable for an email in this exact format: "Application for - <ROLE>" where <ROLE> is the Role value below.
2) The email BODY as MARKDOWN (not HTML). Return ONLY the markdown body after the subject, and do NOT include any metadata, JSON, or code fences.

Requirements for the BODY:
- Use exactly THREE short paragraphs separated by blank lines.
- Use markdown formatting: **bold** for emphasis, regular text for paragraphs. No HTML tags.

Paragraph 1 (Intro): 1-2 sentences introducing the candidate by name, current role and core expertise.
Paragraph 2 (Fit): 1-3 sentences on the opening and the candidate's relevant experience, drawn from the bio, skills and current role.
Paragraph 3 (Close): 1-2 sentences saying resume/portfolio links are available and inviting contact, then "Best regards," on one line and "%[1]s" on the next.

Tone: calm, confident, concise, professional. Keep the body under about 180 words.

User Profile:
- Name: %[1]s
- Current Role: %[2]s
- Bio: %[3]s
- Skills: %[4]s

Job Details:
- Role: %[5]s
- Job Post Text (may be noisy or truncated):
"""
%[6]s
"""

Return the subject line on the first line exactly as: Application for - %[5]s
Then return the markdown body. Do not include any other text or code fences.`,
		p.FullName, p.CurrentRole, p.Bio, p.Skills, role, postText)
}

func rewritePrompt(currentEmail, instruction string) string {
	return fmt.Sprintf(`You are a professional editor.
Rewrite the email below based on this instruction: %q.
Keep the markdown formatting intact, make the message shorter and clearer, and avoid any spammy or salesy tone.
Return ONLY the markdown email body, no code fences or extra text.

Original Email (markdown):
%s`, instruction, currentEmail)
}
