package intake

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// Step names a node of the intake graph.
type Step string

const (
	StepChooseChannel     Step = "CHOOSE_CHANNEL"
	StepEnterAddress      Step = "ENTER_ADDRESS"
	StepEnterPhone        Step = "ENTER_PHONE"
	StepEnterDate         Step = "ENTER_DATE"
	StepEnterNotes        Step = "ENTER_NOTES"
	StepWalkInName        Step = "WALKIN_NAME"
	StepWalkInPhone       Step = "WALKIN_PHONE"
	StepChooseBranch      Step = "CHOOSE_BRANCH"
	StepChooseCategory    Step = "CHOOSE_CATEGORY"
	StepChooseSubcategory Step = "CHOOSE_SUBCATEGORY"
	StepChooseBrand       Step = "CHOOSE_BRAND"
	StepEnterCustomBrand  Step = "ENTER_CUSTOM_BRAND"
	StepEnterProblem      Step = "ENTER_PROBLEM"
	StepCollectPhotos     Step = "COLLECT_PHOTOS"
	StepConfirmNoPhotos   Step = "CONFIRM_NO_PHOTOS"
	StepChooseUrgency     Step = "CHOOSE_URGENCY"

	// StepSubmit is the pseudo step that finishes the flow.
	StepSubmit Step = "SUBMIT"
)

const (
	minAddressLen     = 10
	minPhoneDigits    = 9
	minNameLen        = 2
	minCustomBrandLen = 2
	minProblemLen     = 10
)

// Option labels rendered as keyboard buttons.
const (
	OptionSelfDropOff = "🚶 I'll bring it myself"
	OptionCourier     = "🚚 Courier pickup"
	OptionCancel      = "❌ Cancel"
	OptionDone        = "✅ Done"
	OptionYes         = "✅ Yes, continue"
	OptionNo          = "❌ No, add photos"
	OptionNormal      = "⏳ Normal"
	OptionUrgent      = "🔥 Urgent"
	OptionNoNotes     = "No"
)

// DateOptions are the suggested courier pickup windows; free text is accepted too.
var DateOptions = []string{
	"Today (9:00-19:00)",
	"Tomorrow (9:00-19:00)",
	"Day after tomorrow",
	"I'll specify later",
}

var (
	cancelTokens = []string{"cancel", "/cancel", OptionCancel}
	doneTokens   = []string{"done", "/done", OptionDone}
	yesTokens    = []string{"yes", "y", "ok", OptionYes}
	noTokens     = []string{"no", "n", OptionNo}
	noNotes      = []string{"no", "none", "-", OptionNoNotes}
)

// InputKind distinguishes text replies from photo uploads.
type InputKind string

const (
	InputText  InputKind = "text"
	InputPhoto InputKind = "photo"
)

// Input is one user interaction fed to the flow.
type Input struct {
	Kind    InputKind
	Text    string
	PhotoID string
}

// TextInput builds a text input.
func TextInput(text string) Input {
	return Input{Kind: InputText, Text: text}
}

// PhotoInput builds a photo input referencing an uploaded file.
func PhotoInput(fileID string) Input {
	return Input{Kind: InputPhoto, PhotoID: fileID}
}

// Draft accumulates ticket fields while the session is active.
type Draft struct {
	Channel        domain.IntakeChannel `json:"channel,omitempty"`
	CourierAddress string               `json:"courier_address,omitempty"`
	CourierPhone   string               `json:"courier_phone,omitempty"`
	CourierDate    string               `json:"courier_date,omitempty"`
	CourierNotes   *string              `json:"courier_notes,omitempty"`
	WalkInName     string               `json:"walkin_name,omitempty"`
	WalkInPhone    string               `json:"walkin_phone,omitempty"`
	Branch         string               `json:"branch,omitempty"`
	Category       string               `json:"category,omitempty"`
	Subcategory    string               `json:"subcategory,omitempty"`
	Brand          string               `json:"brand,omitempty"`
	Problem        string               `json:"problem,omitempty"`
	Photos         []string             `json:"photos,omitempty"`
	Urgency        domain.Urgency       `json:"urgency,omitempty"`
}

// Ticket converts a finished draft into a NEW ticket carrying only the channel's fields.
func (d Draft) Ticket() *domain.Ticket {
	ticket := &domain.Ticket{
		Channel:     d.Channel,
		Branch:      d.Branch,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Brand:       d.Brand,
		Problem:     d.Problem,
		Urgency:     d.Urgency,
		Photos:      append([]string{}, d.Photos...),
		Status:      domain.TicketStatusNew,
	}
	switch d.Channel {
	case domain.ChannelCourierDelivery:
		ticket.Courier = &domain.CourierDetails{
			Address: d.CourierAddress,
			Phone:   d.CourierPhone,
			Date:    d.CourierDate,
			Notes:   d.CourierNotes,
		}
	case domain.ChannelWalkIn:
		ticket.WalkIn = &domain.WalkInDetails{Name: d.WalkInName, Phone: d.WalkInPhone}
	}
	return ticket
}

// Session is the per-user wizard state.
type Session struct {
	UserID    string    `json:"user_id"`
	ChatID    string    `json:"chat_id,omitempty"`
	Step      Step      `json:"step"`
	Draft     Draft     `json:"draft"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Prompt is what the user is asked next.
type Prompt struct {
	Step    Step
	Text    string
	Options []string
}

// ValidationError rejects one input without advancing the step.
type ValidationError struct {
	Step    Step
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Outcome classifies the result of Advance.
type Outcome string

const (
	OutcomePrompt     Outcome = "prompt"
	OutcomeValidation Outcome = "validation"
	OutcomeSubmitted  Outcome = "submitted"
	OutcomeCancelled  Outcome = "cancelled"
)

// Result is returned by Advance. Session holds the updated state for prompt and validation
// outcomes; Draft is set only when submitted.
type Result struct {
	Outcome    Outcome
	Session    Session
	Prompt     Prompt
	Validation *ValidationError
	Draft      *Draft
}

type node struct {
	field  string
	prompt func(c Catalog, d Draft) Prompt
	next   []Step
	handle func(c Catalog, d *Draft, in Input) (Step, error)
}

// Flow is the intake state machine. It holds no per-user state.
type Flow struct {
	catalog Catalog
	nodes   map[Step]node
}

// NewFlow builds the flow over catalog.
func NewFlow(catalog Catalog) *Flow {
	return &Flow{catalog: catalog, nodes: buildNodes()}
}

// Start opens a chat session at channel selection.
func (f *Flow) Start(userID, chatID string, now time.Time) (Session, Prompt) {
	return f.start(userID, chatID, StepChooseChannel, Draft{}, now)
}

// StartWalkIn opens a staff-driven session for a customer standing at a branch.
func (f *Flow) StartWalkIn(userID, chatID string, now time.Time) (Session, Prompt) {
	return f.start(userID, chatID, StepWalkInName, Draft{Channel: domain.ChannelWalkIn}, now)
}

func (f *Flow) start(userID, chatID string, step Step, draft Draft, now time.Time) (Session, Prompt) {
	session := Session{UserID: userID, ChatID: chatID, Step: step, Draft: draft, StartedAt: now, UpdatedAt: now}
	return session, f.PromptFor(session)
}

// PromptFor renders the question for the session's current step.
func (f *Flow) PromptFor(session Session) Prompt {
	n, ok := f.nodes[session.Step]
	if !ok {
		return Prompt{Step: session.Step}
	}
	p := n.prompt(f.catalog, session.Draft)
	p.Step = session.Step
	return p
}

// Advance applies one input to session. It never mutates its argument.
func (f *Flow) Advance(session Session, in Input) Result {
	if in.Kind != InputPhoto && matches(cancelTokens, in.Text) {
		return Result{Outcome: OutcomeCancelled, Session: session}
	}

	n, ok := f.nodes[session.Step]
	if !ok {
		return Result{
			Outcome: OutcomeValidation,
			Session: session,
			Validation: &ValidationError{
				Step:    session.Step,
				Message: fmt.Sprintf("unknown step %q, please start over", session.Step),
			},
		}
	}

	draft := cloneDraft(session.Draft)
	next, err := n.handle(f.catalog, &draft, in)
	if err != nil {
		verr, ok := err.(*ValidationError)
		if !ok {
			verr = &ValidationError{Message: err.Error()}
		}
		verr.Step = session.Step
		if verr.Field == "" {
			verr.Field = n.field
		}
		return Result{Outcome: OutcomeValidation, Session: session, Prompt: f.PromptFor(session), Validation: verr}
	}
	if !containsStep(n.next, next) {
		panic(fmt.Sprintf("intake: step %s routed to undeclared step %s", session.Step, next))
	}

	updated := session
	updated.Draft = draft
	if next == StepSubmit {
		return Result{Outcome: OutcomeSubmitted, Session: updated, Draft: &draft}
	}
	updated.Step = next
	return Result{Outcome: OutcomePrompt, Session: updated, Prompt: f.PromptFor(updated)}
}

// Steps lists every node of the graph.
func (f *Flow) Steps() []Step {
	out := make([]Step, 0, len(f.nodes))
	for step := range f.nodes {
		out = append(out, step)
	}
	return out
}

// Reachable returns the steps reachable from the two entry points following declared edges.
func (f *Flow) Reachable() map[Step]bool {
	seen := map[Step]bool{}
	queue := []Step{StepChooseChannel, StepWalkInName}
	for len(queue) > 0 {
		step := queue[0]
		queue = queue[1:]
		if seen[step] {
			continue
		}
		seen[step] = true
		if n, ok := f.nodes[step]; ok {
			queue = append(queue, n.next...)
		}
	}
	return seen
}

// Valid reports whether step is a node of the graph.
func (f *Flow) Valid(step Step) bool {
	_, ok := f.nodes[step]
	return ok
}

func buildNodes() map[Step]node {
	return map[Step]node{
		StepChooseChannel: {
			field: "channel",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{
					Text:    "📦 How will the device reach us?\n\n• I'll bring it myself: faster and cheaper\n• Courier pickup: convenient, extra fee",
					Options: []string{OptionSelfDropOff, OptionCourier, OptionCancel},
				}
			},
			next: []Step{StepChooseBranch, StepEnterAddress},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				switch option, _ := matchOption([]string{OptionSelfDropOff, OptionCourier}, text); option {
				case OptionSelfDropOff:
					d.Channel = domain.ChannelSelfDropOff
					return StepChooseBranch, nil
				case OptionCourier:
					d.Channel = domain.ChannelCourierDelivery
					return StepEnterAddress, nil
				}
				return "", invalid("please choose how the device reaches us using the buttons")
			},
		},
		StepEnterAddress: {
			field: "courier_address",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "🏠 Enter the pickup address.\nExample: Dushanbe, Rudaki Ave 15, apt 42"}
			},
			next: []Step{StepEnterPhone},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				if runeLen(text) < minAddressLen {
					return "", invalid("the address is too short, please enter the full address")
				}
				d.CourierAddress = text
				return StepEnterPhone, nil
			},
		},
		StepEnterPhone: {
			field: "courier_phone",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "📞 Enter a phone number for the courier.\nExample: +992 90 123 45 67"}
			},
			next: []Step{StepEnterDate},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				phone, err := phoneOf(in)
				if err != nil {
					return "", err
				}
				d.CourierPhone = phone
				return StepEnterDate, nil
			},
		},
		StepEnterDate: {
			field: "courier_date",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "📅 When is it convenient to meet the courier?", Options: DateOptions}
			},
			next: []Step{StepEnterNotes},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				if option, ok := matchOption(DateOptions, text); ok {
					text = option
				}
				d.CourierDate = text
				return StepEnterNotes, nil
			},
		},
		StepEnterNotes: {
			field: "courier_notes",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{
					Text:    "📝 Any notes for the courier? For example: 'Ring intercom 42'.\nReply 'No' if there are none.",
					Options: []string{OptionNoNotes},
				}
			},
			next: []Step{StepChooseBranch},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				d.CourierNotes = nil
				if !matches(noNotes, text) {
					notes := text
					d.CourierNotes = &notes
				}
				return StepChooseBranch, nil
			},
		},
		StepWalkInName: {
			field: "walkin_name",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "🙋 Walk-in customer: enter the customer's name."}
			},
			next: []Step{StepWalkInPhone},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				if runeLen(text) < minNameLen {
					return "", invalid("the name is too short")
				}
				d.Channel = domain.ChannelWalkIn
				d.WalkInName = text
				return StepWalkInPhone, nil
			},
		},
		StepWalkInPhone: {
			field: "walkin_phone",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "📞 Enter the customer's phone number."}
			},
			next: []Step{StepChooseBranch},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				phone, err := phoneOf(in)
				if err != nil {
					return "", err
				}
				d.WalkInPhone = phone
				return StepChooseBranch, nil
			},
		},
		StepChooseBranch: {
			field: "branch",
			prompt: func(c Catalog, _ Draft) Prompt {
				return Prompt{Text: "📍 Choose a branch:", Options: c.Branches}
			},
			next: []Step{StepChooseCategory},
			handle: func(c Catalog, d *Draft, in Input) (Step, error) {
				option, err := chooseFrom(c.Branches, in, "please choose a branch using the buttons")
				if err != nil {
					return "", err
				}
				d.Branch = option
				return StepChooseCategory, nil
			},
		},
		StepChooseCategory: {
			field: "category",
			prompt: func(c Catalog, _ Draft) Prompt {
				return Prompt{Text: "📂 Choose the device category:", Options: c.CategoryNames()}
			},
			next: []Step{StepChooseSubcategory},
			handle: func(c Catalog, d *Draft, in Input) (Step, error) {
				option, err := chooseFrom(c.CategoryNames(), in, "please choose a category using the buttons")
				if err != nil {
					return "", err
				}
				d.Category = option
				d.Subcategory, d.Brand = "", ""
				return StepChooseSubcategory, nil
			},
		},
		StepChooseSubcategory: {
			field: "subcategory",
			prompt: func(c Catalog, d Draft) Prompt {
				return Prompt{Text: "📁 Choose the device type:", Options: c.SubcategoryNames(d.Category)}
			},
			next: []Step{StepChooseBrand},
			handle: func(c Catalog, d *Draft, in Input) (Step, error) {
				option, err := chooseFrom(c.SubcategoryNames(d.Category), in, "please choose a device type using the buttons")
				if err != nil {
					return "", err
				}
				d.Subcategory = option
				return StepChooseBrand, nil
			},
		},
		StepChooseBrand: {
			field: "brand",
			prompt: func(c Catalog, d Draft) Prompt {
				return Prompt{
					Text:    "🏷 Choose the brand. If yours is not listed, choose \"Other\".",
					Options: c.BrandOptions(d.Category, d.Subcategory),
				}
			},
			next: []Step{StepEnterProblem, StepEnterCustomBrand},
			handle: func(c Catalog, d *Draft, in Input) (Step, error) {
				option, err := chooseFrom(c.BrandOptions(d.Category, d.Subcategory), in, "please choose a brand using the buttons")
				if err != nil {
					return "", err
				}
				if option == OtherBrand {
					return StepEnterCustomBrand, nil
				}
				d.Brand = option
				return StepEnterProblem, nil
			},
		},
		StepEnterCustomBrand: {
			field: "brand",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "✍️ Enter the brand name:"}
			},
			next: []Step{StepEnterProblem},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				if runeLen(text) < minCustomBrandLen {
					return "", invalid("the brand name is too short")
				}
				d.Brand = text
				return StepEnterProblem, nil
			},
		},
		StepEnterProblem: {
			field: "problem",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{Text: "🛠 Describe the problem in detail.\nExample: 'Does not turn on, the indicator blinks'"}
			},
			next: []Step{StepCollectPhotos, StepChooseUrgency},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				text, err := textOf(in)
				if err != nil {
					return "", err
				}
				if runeLen(text) < minProblemLen {
					return "", invalid("the description is too short, please add more detail")
				}
				d.Problem = text
				if d.Channel == domain.ChannelWalkIn {
					return StepChooseUrgency, nil
				}
				return StepCollectPhotos, nil
			},
		},
		StepCollectPhotos: {
			field: "photos",
			prompt: func(_ Catalog, d Draft) Prompt {
				text := fmt.Sprintf("📸 Send up to %d photos of the device, then press Done.", domain.MaxTicketPhotos)
				if n := len(d.Photos); n > 0 {
					text = fmt.Sprintf("✅ Photo %d/%d received. Send another or press Done.", n, domain.MaxTicketPhotos)
				}
				return Prompt{Text: text, Options: []string{OptionDone}}
			},
			next: []Step{StepCollectPhotos, StepConfirmNoPhotos, StepChooseUrgency},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				if in.Kind == InputPhoto {
					if len(d.Photos) >= domain.MaxTicketPhotos {
						return "", invalid(fmt.Sprintf("at most %d photos are allowed, press Done to continue", domain.MaxTicketPhotos))
					}
					d.Photos = append(d.Photos, in.PhotoID)
					return StepCollectPhotos, nil
				}
				if !matches(doneTokens, in.Text) {
					return "", invalid("send a photo or press Done")
				}
				if len(d.Photos) == 0 {
					return StepConfirmNoPhotos, nil
				}
				return StepChooseUrgency, nil
			},
		},
		StepConfirmNoPhotos: {
			field: "photos",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{
					Text:    "⚠️ You have not sent any photos. Continue without photos?",
					Options: []string{OptionYes, OptionNo},
				}
			},
			next: []Step{StepChooseUrgency, StepCollectPhotos},
			handle: func(_ Catalog, _ *Draft, in Input) (Step, error) {
				switch {
				case in.Kind != InputPhoto && matches(yesTokens, in.Text):
					return StepChooseUrgency, nil
				case in.Kind != InputPhoto && matches(noTokens, in.Text):
					return StepCollectPhotos, nil
				}
				return "", invalid("please answer yes to continue without photos or no to add some")
			},
		},
		StepChooseUrgency: {
			field: "urgency",
			prompt: func(Catalog, Draft) Prompt {
				return Prompt{
					Text:    "⏳ How urgent is the repair?\n\n• Normal: 1-3 business days\n• Urgent: priority, +30% to the price",
					Options: []string{OptionNormal, OptionUrgent},
				}
			},
			next: []Step{StepSubmit},
			handle: func(_ Catalog, d *Draft, in Input) (Step, error) {
				option, err := chooseFrom([]string{OptionNormal, OptionUrgent}, in, "please choose the urgency using the buttons")
				if err != nil {
					return "", err
				}
				d.Urgency = domain.UrgencyNormal
				if option == OptionUrgent {
					d.Urgency = domain.UrgencyUrgent
				}
				return StepSubmit, nil
			},
		},
	}
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

func textOf(in Input) (string, error) {
	if in.Kind == InputPhoto {
		return "", invalid("please reply with text")
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return "", invalid("please reply with text")
	}
	return text, nil
}

func phoneOf(in Input) (string, error) {
	text, err := textOf(in)
	if err != nil {
		return "", err
	}
	if !ValidPhone(text) {
		return "", invalid("the phone number is too short, please enter a valid number")
	}
	return text, nil
}

// ValidPhone accepts numbers with at least nine ASCII digits once spaces and a leading "+" are
// removed.
func ValidPhone(raw string) bool {
	digits := strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""), "+")
	if len(digits) < minPhoneDigits {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

func chooseFrom(options []string, in Input, message string) (string, error) {
	text, err := textOf(in)
	if err != nil {
		return "", invalid(message)
	}
	option, ok := matchOption(options, text)
	if !ok {
		return "", invalid(message)
	}
	return option, nil
}

// matchOption compares case-insensitively and also accepts a label typed without its emoji prefix.
func matchOption(options []string, text string) (string, bool) {
	want := normalize(text)
	for _, option := range options {
		if normalize(option) == want || normalize(stripDecoration(option)) == want {
			return option, true
		}
	}
	return "", false
}

func matches(tokens []string, text string) bool {
	_, ok := matchOption(tokens, text)
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func stripDecoration(label string) string {
	return strings.TrimLeftFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func runeLen(s string) int {
	return len([]rune(strings.TrimSpace(s)))
}

func containsStep(steps []Step, step Step) bool {
	for _, s := range steps {
		if s == step {
			return true
		}
	}
	return false
}

func cloneDraft(d Draft) Draft {
	out := d
	out.Photos = append([]string(nil), d.Photos...)
	if d.CourierNotes != nil {
		notes := *d.CourierNotes
		out.CourierNotes = &notes
	}
	return out
}
