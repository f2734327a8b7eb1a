package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/repository"
	"study-planner/internal/service"
)

const (
	cbSelectProjectPrefix = "project:"
	cbCompletePrefix      = "complete:"
)

var weekdayNames = map[string]int{
	"sun": 1, "mon": 2, "tue": 3, "wed": 4, "thu": 5, "fri": 6, "sat": 7,
}

var weekdayLabels = [8]string{"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Bot aggregates the Telegram API with the planner services.
type Bot struct {
	api          *tgbotapi.BotAPI
	userRepo     *repository.UserRepository
	projectRepo  *repository.ProjectRepository
	areaRepo     *repository.AreaRepository
	subjectRepo  *repository.SubjectRepository
	cycleRepo    *repository.CycleRepository
	gridRepo     *repository.GridRepository
	settingsRepo *repository.SettingsRepository
	scheduleRepo *repository.ScheduleRepository
	scheduleSvc  *service.ScheduleService
	studySvc     *service.StudyService
	reportSvc    *service.ReportService
	config       *config.Config
	log          zerolog.Logger
}

// Deps bundles everything the bot needs.
type Deps struct {
	UserRepo     *repository.UserRepository
	ProjectRepo  *repository.ProjectRepository
	AreaRepo     *repository.AreaRepository
	SubjectRepo  *repository.SubjectRepository
	CycleRepo    *repository.CycleRepository
	GridRepo     *repository.GridRepository
	SettingsRepo *repository.SettingsRepository
	ScheduleRepo *repository.ScheduleRepository
	ScheduleSvc  *service.ScheduleService
	StudySvc     *service.StudyService
	ReportSvc    *service.ReportService
	Config       *config.Config
	Log          zerolog.Logger
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	deps.Log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:          api,
		userRepo:     deps.UserRepo,
		projectRepo:  deps.ProjectRepo,
		areaRepo:     deps.AreaRepo,
		subjectRepo:  deps.SubjectRepo,
		cycleRepo:    deps.CycleRepo,
		gridRepo:     deps.GridRepo,
		settingsRepo: deps.SettingsRepo,
		scheduleRepo: deps.ScheduleRepo,
		scheduleSvc:  deps.ScheduleSvc,
		studySvc:     deps.StudySvc,
		reportSvc:    deps.ReportSvc,
		config:       deps.Config,
		log:          deps.Log,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands here. Try /help.")
	}

	b.log.Info().Int64("from", msg.From.ID).Str("command", msg.Command()).Msg("command")

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newproject":
		return b.handleNewProject(ctx, msg)
	case "projects":
		return b.handleProjects(ctx, msg)
	case "newsubject":
		return b.handleNewSubject(ctx, msg)
	case "subjects":
		return b.handleSubjects(ctx, msg)
	case "revsubject":
		return b.handleRevisionSubject(ctx, msg)
	case "newcycle":
		return b.handleNewCycle(ctx, msg)
	case "additem":
		return b.handleAddItem(ctx, msg)
	case "cycle":
		return b.handleShowCycle(ctx, msg)
	case "newgrid":
		return b.handleNewGrid(ctx, msg)
	case "addslot":
		return b.handleAddSlot(ctx, msg)
	case "grid":
		return b.handleShowGrid(ctx, msg)
	case "generate":
		return b.handleGenerate(ctx, msg)
	case "plan":
		return b.handlePlan(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "study":
		return b.handleStudy(ctx, msg)
	case "settings":
		return b.handleSettings(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(user.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\n<b>I plan your study cycle and inject 24h/7d/30d reviews automatically.</b>\n\n"+
			"Quick setup:\n"+
			"1. /newproject &lt;name&gt;\n"+
			"2. /newsubject &lt;name&gt; — repeat per subject\n"+
			"3. /newcycle &lt;name&gt; then /additem &lt;subject&gt; &lt;minutes&gt;\n"+
			"4. /newgrid &lt;name&gt; then /addslot &lt;weekday&gt; &lt;start&gt; &lt;end&gt;\n"+
			"5. /generate — build the day-by-day schedule\n\n"+
			"See /help for everything else.",
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /newproject &lt;name&gt; — create a study project\n" +
		"• /projects — list and switch projects\n" +
		"• /newsubject &lt;name&gt; [area] — register a subject\n" +
		"• /subjects — list subjects\n" +
		"• /revsubject &lt;name&gt; — flag the subject used for reviews\n" +
		"• /newcycle &lt;name&gt; — create the rotation cycle (becomes default)\n" +
		"• /additem &lt;subject&gt; &lt;minutes&gt; — append a rotation block\n" +
		"• /cycle — show the rotation\n" +
		"• /newgrid &lt;name&gt; — create the weekly grid (becomes default)\n" +
		"• /addslot &lt;weekday 1-7|sun..sat&gt; &lt;HH:MM&gt; &lt;HH:MM&gt; — add a window\n" +
		"• /grid — show the weekly grid\n" +
		"• /generate [days] [YYYY-MM-DD] — generate the schedule\n" +
		"• /plan [days] — upcoming agenda\n" +
		"• /report — today's agenda\n" +
		"• /done &lt;id&gt; — complete a scheduled block\n" +
		"• /study &lt;minutes&gt; [subject] — log a free study session\n" +
		"• /settings [m24 m7 m30] — review minutes (informational)"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleNewProject(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /newproject <name>")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	project := model.Project{UserID: user.ID, Name: name}
	if err := b.projectRepo.Create(ctx, &project); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not create project: %s", escape(err.Error())))
	}
	if err := b.projectRepo.SetDefault(ctx, user.ID, project.ID); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not select project: %s", escape(err.Error())))
	}

	return b.sendText(msg.Chat.ID, fmt.Sprintf("📁 Project <b>%s</b> created and selected.", escape(name)))
}

func (b *Bot) handleProjects(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	projects, err := b.projectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not list projects: %s", escape(err.Error())))
	}
	if len(projects) == 0 {
		return b.sendText(msg.Chat.ID, "No projects yet. Create one with /newproject <name>.")
	}

	var builder strings.Builder
	builder.WriteString("📁 <b>Projects</b>\nTap to switch the working project.\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, project := range projects {
		marker := ""
		if project.IsDefault {
			marker = " ✅"
		}
		builder.WriteString(fmt.Sprintf("• %s%s\n", escape(project.Name), marker))
		buttons = append(buttons, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(project.Name, fmt.Sprintf("%s%d", cbSelectProjectPrefix, project.ID)),
		})
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.TrimSpace(builder.String()))
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleNewSubject(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, "Usage: /newsubject <name> [area]")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	subject := model.Subject{UserID: user.ID, Name: args[0]}
	if len(args) > 1 {
		area, err := b.areaRepo.GetOrCreate(ctx, user.ID, strings.Join(args[1:], " "))
		if err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not resolve area: %s", escape(err.Error())))
		}
		if area != nil {
			subject.AreaID = &area.ID
		}
	}

	if err := b.subjectRepo.Create(ctx, &subject); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not create subject: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📚 Subject <b>%s</b> registered.", escape(subject.Name)))
}

func (b *Bot) handleSubjects(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	subjects, err := b.subjectRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not list subjects: %s", escape(err.Error())))
	}
	if len(subjects) == 0 {
		return b.sendText(msg.Chat.ID, "No subjects yet. Add one with /newsubject <name>.")
	}

	areas, _ := b.areaRepo.ListByUser(ctx, user.ID)
	areaNames := make(map[uint]string, len(areas))
	for _, area := range areas {
		areaNames[area.ID] = area.Name
	}

	var builder strings.Builder
	builder.WriteString("📚 <b>Subjects</b>\n")
	for _, subject := range subjects {
		line := escape(subject.Name)
		if subject.AreaID != nil {
			if name, ok := areaNames[*subject.AreaID]; ok {
				line += " · " + escape(name)
			}
		}
		if subject.IsRevision {
			line += " 🔁"
		}
		builder.WriteString("• " + line + "\n")
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleRevisionSubject(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /revsubject <subject name>")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	subject, err := b.subjectRepo.FindByName(ctx, user.ID, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Subject not found. List them with /subjects.")
		}
		return err
	}

	if err := b.subjectRepo.MarkRevision(ctx, user.ID, subject.ID); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not flag subject: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔁 <b>%s</b> now labels spaced-repetition reviews and is excluded from the rotation.", escape(subject.Name)))
}

func (b *Bot) handleNewCycle(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /newcycle <name>")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	cycle := model.Cycle{UserID: user.ID, Name: name}
	if err := b.cycleRepo.CreateAsDefault(ctx, &cycle); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not create cycle: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔄 Cycle <b>%s</b> created and set as default. Add blocks with /additem <subject> <minutes>.", escape(name)))
}

func (b *Bot) handleAddItem(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /additem <subject> <minutes>")
	}

	minutes, err := strconv.Atoi(args[len(args)-1])
	if err != nil || minutes <= 0 {
		return b.sendText(msg.Chat.ID, "Minutes must be a positive number, e.g. /additem Math 60")
	}
	subjectName := strings.Join(args[:len(args)-1], " ")

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	cycle, err := b.scheduleRepo.GetDefaultOrSoleCycle(ctx, user.ID)
	if err != nil {
		return err
	}
	if cycle == nil {
		return b.sendText(msg.Chat.ID, "No cycle yet. Create one with /newcycle <name>.")
	}

	subject, err := b.subjectRepo.FindByName(ctx, user.ID, subjectName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Subject not found. Register it first with /newsubject.")
		}
		return err
	}

	item, err := b.cycleRepo.AppendItem(ctx, cycle.ID, subject.ID, minutes)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not add item: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("➕ Block %d: <b>%s</b>, %d min.", item.Index+1, escape(subject.Name), minutes))
}

func (b *Bot) handleShowCycle(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	cycle, err := b.scheduleRepo.GetDefaultOrSoleCycle(ctx, user.ID)
	if err != nil {
		return err
	}
	if cycle == nil {
		return b.sendText(msg.Chat.ID, "No cycle yet. Create one with /newcycle <name>.")
	}

	items, err := b.scheduleRepo.ListCycleItems(ctx, cycle.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Cycle <b>%s</b> has no blocks. Add them with /additem.", escape(cycle.Name)))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🔄 <b>%s</b>\n", escape(cycle.Name)))
	for _, item := range items {
		name := fmt.Sprintf("item %d", item.ID)
		if item.Subject != nil {
			name = item.Subject.Name
		}
		builder.WriteString(fmt.Sprintf("%d. %s — %d min\n", item.Index+1, escape(name), item.Duration()))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleNewGrid(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /newgrid <name>")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	grid := model.WeeklyGrid{UserID: user.ID, Name: name}
	if err := b.gridRepo.CreateAsDefault(ctx, &grid); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not create grid: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗓 Grid <b>%s</b> created and set as default. Add windows with /addslot.", escape(name)))
}

func (b *Bot) handleAddSlot(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 3 {
		return b.sendText(msg.Chat.ID, "Usage: /addslot <weekday 1-7|sun..sat> <HH:MM> <HH:MM>")
	}

	weekday, err := parseWeekday(args[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, escape(err.Error()))
	}

	startMin, err1 := parseHHMM(args[1])
	endMin, err2 := parseHHMM(args[2])
	if err1 != nil || err2 != nil || endMin <= startMin {
		return b.sendText(msg.Chat.ID, "Times must be HH:MM with end after start, e.g. /addslot mon 08:00 10:00")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	grid, err := b.scheduleRepo.GetDefaultOrSoleGrid(ctx, user.ID)
	if err != nil {
		return err
	}
	if grid == nil {
		return b.sendText(msg.Chat.ID, "No grid yet. Create one with /newgrid <name>.")
	}

	slot := model.GridSlot{
		GridID:    grid.ID,
		Weekday:   weekday,
		StartTime: args[1],
		EndTime:   args[2],
		Minutes:   endMin - startMin,
	}
	if err := b.gridRepo.AddSlot(ctx, &slot); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not add slot: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏰ %s %s–%s added (%d min).", weekdayLabels[weekday], args[1], args[2], slot.Minutes))
}

func (b *Bot) handleShowGrid(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	grid, err := b.scheduleRepo.GetDefaultOrSoleGrid(ctx, user.ID)
	if err != nil {
		return err
	}
	if grid == nil {
		return b.sendText(msg.Chat.ID, "No grid yet. Create one with /newgrid <name>.")
	}

	slots, err := b.gridRepo.ListSlots(ctx, grid.ID)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Grid <b>%s</b> has no windows. Add them with /addslot.", escape(grid.Name)))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🗓 <b>%s</b>\n", escape(grid.Name)))
	lastWeekday := 0
	for _, slot := range slots {
		if slot.Weekday != lastWeekday {
			builder.WriteString(fmt.Sprintf("<b>%s</b>\n", weekdayLabels[slot.Weekday]))
			lastWeekday = slot.Weekday
		}
		builder.WriteString(fmt.Sprintf("  %s–%s\n", slot.StartTime, slot.EndTime))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleGenerate(ctx context.Context, msg *tgbotapi.Message) error {
	_, project, err := b.currentProject(ctx, msg)
	if err != nil || project == nil {
		return err
	}

	days := b.config.HorizonDays
	var startDate time.Time

	args := strings.Fields(msg.CommandArguments())
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			if n < 1 || n > 90 {
				return b.sendText(msg.Chat.ID, "Days must be between 1 and 90.")
			}
			days = n
			continue
		}
		parsed, err := time.Parse(service.DateFormat, arg)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Usage: /generate [days] [YYYY-MM-DD]")
		}
		startDate = parsed
	}

	result, err := b.scheduleSvc.Generate(ctx, project.ID, startDate, days)
	if err != nil {
		return b.sendText(msg.Chat.ID, configErrorText(err))
	}
	return b.sendText(msg.Chat.ID, "🚀 "+escape(result.Message()))
}

func (b *Bot) handlePlan(ctx context.Context, msg *tgbotapi.Message) error {
	user, project, err := b.currentProject(ctx, msg)
	if err != nil || project == nil {
		return err
	}

	days := 7
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > 90 {
			return b.sendText(msg.Chat.ID, "Usage: /plan [days 1-90]")
		}
		days = n
	}

	text, err := b.reportSvc.Upcoming(ctx, *user, *project, time.Now(), days)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the plan: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, project, err := b.currentProject(ctx, msg)
	if err != nil || project == nil {
		return err
	}

	now := time.Now()
	text, err := b.reportSvc.DailyAgenda(ctx, *user, *project, now)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the agenda: %s", escape(err.Error())))
	}

	keyboard, err := b.completionKeyboard(ctx, project.ID, now)
	if err != nil {
		return err
	}
	return b.sendWithKeyboard(msg.Chat.ID, text, keyboard)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, "Usage: /done <task id>")
	}
	taskID64, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Task id must be a number.")
	}

	_, project, err := b.currentProject(ctx, msg)
	if err != nil || project == nil {
		return err
	}

	task, err := b.studySvc.CompleteTask(ctx, project, uint(taskID64))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(msg.Chat.ID, "Task not found in the current project.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ <b>#%d</b> %s done, %.2fh logged.", task.ID, escape(task.Description), task.PlannedHours))
}

func (b *Bot) handleStudy(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, "Usage: /study <minutes> [subject]")
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes <= 0 {
		return b.sendText(msg.Chat.ID, "Minutes must be a positive number, e.g. /study 45 Math")
	}

	user, project, err := b.currentProject(ctx, msg)
	if err != nil || project == nil {
		return err
	}

	var subject *model.Subject
	if len(args) > 1 {
		subject, err = b.subjectRepo.FindByName(ctx, user.ID, strings.Join(args[1:], " "))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendText(msg.Chat.ID, "Subject not found. List them with /subjects.")
			}
			return err
		}
	}

	entry, err := b.studySvc.LogSession(ctx, project, subject, minutes)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not log the session: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏱ Logged %.2fh on %s (study day %d).", entry.ActualHours, entry.Date, entry.DayNumber))
}

func (b *Bot) handleSettings(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	settings, err := b.settingsRepo.GetOrInit(ctx, user.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load settings: %s", escape(err.Error())))
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf(
			"⚙️ <b>Review minutes</b>\n• 24h: %d\n• 7d: %d\n• 30d: %d\n\nChange with /settings <m24> <m7> <m30>. The generator currently uses its built-in durations.",
			settings.Rev24Minutes, settings.Rev7Minutes, settings.Rev30Minutes,
		))
	}
	if len(args) != 3 {
		return b.sendText(msg.Chat.ID, "Usage: /settings <m24> <m7> <m30>")
	}

	values := make([]int, 3)
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return b.sendText(msg.Chat.ID, "All three values must be positive minute counts.")
		}
		values[i] = n
	}
	settings.Rev24Minutes, settings.Rev7Minutes, settings.Rev30Minutes = values[0], values[1], values[2]

	if err := b.settingsRepo.Update(ctx, settings); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save settings: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, "⚙️ Settings saved.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}

	switch {
	case strings.HasPrefix(cb.Data, cbSelectProjectPrefix):
		projectID, err := strconv.ParseUint(strings.TrimPrefix(cb.Data, cbSelectProjectPrefix), 10, 64)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		project, err := b.projectRepo.FindByID(ctx, user.ID, uint(projectID))
		if err != nil {
			return b.sendText(cb.Message.Chat.ID, "Project not found.")
		}
		if err := b.projectRepo.SetDefault(ctx, user.ID, project.ID); err != nil {
			return err
		}
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("📁 Working project: <b>%s</b>.", escape(project.Name)))
	case strings.HasPrefix(cb.Data, cbCompletePrefix):
		taskID, err := strconv.ParseUint(strings.TrimPrefix(cb.Data, cbCompletePrefix), 10, 64)
		if err != nil {
			return nil
		}
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		project, err := b.projectRepo.GetDefaultOrSole(ctx, user.ID)
		if err != nil || project == nil {
			return err
		}
		task, err := b.studySvc.CompleteTask(ctx, project, uint(taskID))
		if err != nil {
			return b.sendText(cb.Message.Chat.ID, "Task not found.")
		}
		return b.sendText(cb.Message.Chat.ID, fmt.Sprintf("✅ <b>#%d</b> %s done.", task.ID, escape(task.Description)))
	}

	return nil
}

// SendDailyAgendas sends today's agenda to every user with a working
// project. Called from the cron job.
func (b *Bot) SendDailyAgendas(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		project, err := b.projectRepo.GetDefaultOrSole(ctx, user.ID)
		if err != nil || project == nil {
			continue
		}
		text, err := b.reportSvc.DailyAgenda(ctx, user, *project, now)
		if err != nil {
			b.log.Error().Err(err).Int64("user", user.TelegramID).Msg("build agenda")
			continue
		}
		keyboard, err := b.completionKeyboard(ctx, project.ID, now)
		if err != nil {
			b.log.Error().Err(err).Int64("user", user.TelegramID).Msg("agenda keyboard")
			keyboard = nil
		}
		if err := b.sendWithKeyboard(user.TelegramID, text, keyboard); err != nil {
			b.log.Error().Err(err).Int64("user", user.TelegramID).Msg("send agenda")
		}
	}
	return nil
}

// currentProject resolves the user's working project, prompting for setup
// when there is none. A nil project with nil error means the prompt was
// already sent.
func (b *Bot) currentProject(ctx context.Context, msg *tgbotapi.Message) (*model.User, *model.Project, error) {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return nil, nil, err
	}
	project, err := b.projectRepo.GetDefaultOrSole(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if project == nil {
		return user, nil, b.sendText(msg.Chat.ID, "No working project. Create one with /newproject <name> or pick one via /projects.")
	}
	return user, project, nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithKeyboard(chatID, text, nil)
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	_, err := b.api.Send(msg)
	return err
}

// completionKeyboard builds one ✅ button per still-pending block of the
// given day, so agendas can be checked off without typing /done.
func (b *Bot) completionKeyboard(ctx context.Context, projectID uint, date time.Time) (*tgbotapi.InlineKeyboardMarkup, error) {
	dateStr := date.Format(service.DateFormat)
	tasks, err := b.scheduleRepo.ListTasksBetween(ctx, projectID, dateStr, dateStr)
	if err != nil {
		return nil, err
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		if task.Status != model.StatusPending {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("✅ #%d", task.ID),
			fmt.Sprintf("%s%d", cbCompletePrefix, task.ID),
		))
		if len(row) == 3 {
			buttons = append(buttons, row)
			row = nil
		}
	}
	if len(row) > 0 {
		buttons = append(buttons, row)
	}
	if len(buttons) == 0 {
		return nil, nil
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(buttons...)
	return &keyboard, nil
}

// configErrorText maps generator configuration errors to setup guidance.
func configErrorText(err error) string {
	var missing []string
	if errors.Is(err, service.ErrMissingCycle) {
		missing = append(missing, "a default study cycle (/newcycle)")
	}
	if errors.Is(err, service.ErrMissingGrid) {
		missing = append(missing, "a default weekly grid (/newgrid)")
	}
	if len(missing) > 0 {
		return "⚠️ <b>Configuration incomplete</b>\nYou still need " + strings.Join(missing, " and ") +
			".\nIf you have exactly one record it is used automatically."
	}
	if errors.Is(err, service.ErrEmptyCycle) {
		return "⚠️ The study cycle has no blocks. Add them with /additem <subject> <minutes>."
	}
	return "Could not generate the schedule: " + escape(err.Error())
}

func parseWeekday(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n >= 1 && n <= 7 {
			return n, nil
		}
		return 0, fmt.Errorf("weekday must be 1 (Sunday) through 7 (Saturday)")
	}
	if n, ok := weekdayNames[strings.ToLower(raw)]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("unknown weekday %q, use 1-7 or sun..sat", raw)
}

func parseHHMM(raw string) (int, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour*60 + minute, nil
}

func escape(s string) string {
	return html.EscapeString(s)
}
