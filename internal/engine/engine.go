// Package engine — ядро support-bridge: машина состояний тикетов и
// двунаправленная маршрутизация сообщений между пользователями и чатом
// поддержки.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/psds-microservice/support-bridge/internal/errs"
	"github.com/psds-microservice/support-bridge/internal/kafka"
	"github.com/psds-microservice/support-bridge/internal/model"
	"github.com/psds-microservice/support-bridge/internal/service"
	"github.com/psds-microservice/support-bridge/internal/transport"
	"go.uber.org/zap"
)

// Outcome — итог обработки входящего события. Ошибки хранилища в Outcome не
// попадают: они возвращаются отдельной ошибкой и поднимаются наверх.
type Outcome string

const (
	// OutcomeForwarded — сообщение пользователя переслано в чат поддержки.
	OutcomeForwarded Outcome = "forwarded"
	// OutcomeDelivered — ответ оператора доставлен пользователю.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeHandled — команда оператора выполнена.
	OutcomeHandled Outcome = "handled"
	// OutcomePolicyDrop — событие отброшено по правилам (блокировка, чужой
	// чат/топик, неподдерживаемое содержимое, команда не-ответом).
	OutcomePolicyDrop Outcome = "policy_drop"
	// OutcomeResolutionFailure — ответ или команду не удалось сопоставить с
	// тикетом; оператору отвечено, выше не поднимается.
	OutcomeResolutionFailure Outcome = "resolution_failure"
	// OutcomeBlockedSuppressed — ответ оператора не доставлен: пользователь
	// заблокирован.
	OutcomeBlockedSuppressed Outcome = "blocked_suppressed"
	// OutcomeDeliveryFailure — транспорт не смог отправить; событие
	// залогировано и брошено, без ретраев и без записи связи.
	OutcomeDeliveryFailure Outcome = "delivery_failure"
)

// Sender — исходящая сторона транспорта, единственное, что нужно движку.
type Sender interface {
	Send(ctx context.Context, out transport.Outbound) (int64, error)
}

// Config — параметры маршрутизации, задаются один раз при старте процесса.
type Config struct {
	SupportChatID      int64
	SupportTopicID     int64 // 0 — без топика
	OpenTicketsLimit   int
	NotifyBlockedReply bool
	DisplayLocation    *time.Location
}

// Engine владеет всеми тремя хранилищами; никакой другой компонент их не
// мутирует. События одного пользователя сериализуются пер-пользовательским
// мьютексом, события разных пользователей могут обрабатываться параллельно.
type Engine struct {
	cfg     Config
	tickets service.TicketStorer
	links   service.LinkStorer
	blocks  service.BlockStorer
	sender  Sender
	events  kafka.EventProducer
	logger  *zap.Logger

	mu     sync.Mutex
	userMu map[int64]*sync.Mutex
}

func New(cfg Config, tickets service.TicketStorer, links service.LinkStorer, blocks service.BlockStorer, sender Sender, events kafka.EventProducer, logger *zap.Logger) *Engine {
	if cfg.OpenTicketsLimit <= 0 {
		cfg.OpenTicketsLimit = 50
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		tickets: tickets,
		links:   links,
		blocks:  blocks,
		sender:  sender,
		events:  events,
		logger:  logger,
		userMu:  make(map[int64]*sync.Mutex),
	}
}

// lockUser сериализует обработку событий одного пользователя: два почти
// одновременных первых сообщения не должны породить два открытых тикета.
func (e *Engine) lockUser(userID int64) func() {
	e.mu.Lock()
	m, ok := e.userMu[userID]
	if !ok {
		m = &sync.Mutex{}
		e.userMu[userID] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (e *Engine) inScope(s transport.Scope) bool {
	if s.ChatID != e.cfg.SupportChatID {
		return false
	}
	return e.cfg.SupportTopicID == 0 || s.TopicID == e.cfg.SupportTopicID
}

func (e *Engine) emit(ctx context.Context, event string, payload map[string]interface{}) {
	if e.events != nil {
		e.events.Produce(ctx, event, payload)
	}
}

// HandleEvent диспетчеризует одно входящее событие транспорта.
func (e *Engine) HandleEvent(ctx context.Context, ev transport.Event) (Outcome, error) {
	switch v := ev.(type) {
	case *transport.UserMessage:
		return e.HandleUserMessage(ctx, v)
	case *transport.SupportReply:
		return e.HandleSupportReply(ctx, v)
	case *transport.ControlCommand:
		return e.HandleCommand(ctx, v)
	case *transport.BlockToggleRequest:
		return e.HandleBlockToggle(ctx, v)
	case *transport.UserCommand:
		return e.HandleUserCommand(ctx, v)
	default:
		return OutcomePolicyDrop, nil
	}
}

// HandleUserMessage обрабатывает сообщение пользователя из личного чата:
// находит или открывает тикет, пересылает копию с заголовком в чат поддержки
// и записывает связь.
func (e *Engine) HandleUserMessage(ctx context.Context, msg *transport.UserMessage) (Outcome, error) {
	if !msg.Content.Supported() {
		return OutcomePolicyDrop, nil
	}
	blocked, err := e.blocks.IsBlocked(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("check block: %w", err)
	}
	if blocked {
		// Заблокированному не отвечаем ничем: молчание не выдаёт блокировку.
		e.logger.Debug("dropped message from blocked user", zap.Int64("user_id", msg.ChatID))
		return OutcomePolicyDrop, nil
	}

	unlock := e.lockUser(msg.ChatID)
	defer unlock()

	t, created, err := e.tickets.OpenOrCreate(ctx, msg.ChatID, msg.From.DisplayName, msg.From.Handle)
	if err != nil {
		return "", fmt.Errorf("open or create ticket: %w", err)
	}
	if created {
		e.emit(ctx, "ticket.created", map[string]interface{}{
			"ticket_id": t.ID,
			"user_id":   t.UserID,
			"status":    string(t.Status),
		})
		ack := transport.Outbound{
			ChatID:  msg.ChatID,
			Content: transport.Text(fmt.Sprintf("✅ Ваш тикет #%d создан. Оператор поддержки скоро ответит.", t.ID)),
		}
		if _, err := e.sender.Send(ctx, ack); err != nil {
			e.logger.Warn("ticket ack failed",
				zap.Int64("ticket_id", t.ID), zap.Int64("user_id", msg.ChatID), zap.Error(err))
		}
	}

	var header string
	if created {
		header = newTicketHeader(t.ID, msg.From)
	} else {
		header = continuationHeader(t.ID, msg.From)
	}

	out := transport.Outbound{
		ChatID:            e.cfg.SupportChatID,
		TopicID:           e.cfg.SupportTopicID,
		Content:           msg.Content,
		BlockToggleUserID: msg.ChatID,
	}
	if msg.Content.Kind == transport.ContentText {
		out.Content = transport.Text(header + "\n\n" + msg.Content.Text)
	} else if msg.Caption != "" {
		out.Caption = header + "\n\n" + msg.Caption
	} else {
		out.Caption = header
	}

	supportID, err := e.sender.Send(ctx, out)
	if err != nil {
		e.logger.Error("forward to support failed",
			zap.Int64("ticket_id", t.ID), zap.Int64("user_id", msg.ChatID), zap.Error(err))
		return OutcomeDeliveryFailure, nil
	}
	if err := e.links.Link(ctx, msg.ChatID, msg.MessageID, supportID, t.ID); err != nil {
		return "", fmt.Errorf("save message link: %w", err)
	}
	return OutcomeForwarded, nil
}

// HandleSupportReply доставляет ответ оператора пользователю, сообщение
// которого было процитировано. Хранилища при этом не мутируются.
func (e *Engine) HandleSupportReply(ctx context.Context, r *transport.SupportReply) (Outcome, error) {
	if !e.inScope(r.Scope) {
		return OutcomePolicyDrop, nil
	}
	if r.RepliedToID == 0 {
		return OutcomePolicyDrop, nil
	}
	link, err := e.links.ResolveBySupportMessage(ctx, r.RepliedToID)
	if err != nil {
		if errors.Is(err, errs.ErrLinkNotFound) {
			// Ответ на сообщение, которое бот не пересылал (например, до его
			// запуска) — молча пропускаем.
			return OutcomeResolutionFailure, nil
		}
		return "", fmt.Errorf("resolve support message: %w", err)
	}
	blocked, err := e.blocks.IsBlocked(ctx, link.UserID)
	if err != nil {
		return "", fmt.Errorf("check block: %w", err)
	}
	if blocked {
		if e.cfg.NotifyBlockedReply {
			e.replyToOperator(ctx, r.MessageID, "🚫 Пользователь заблокирован, ответ не доставлен.")
		}
		return OutcomeBlockedSuppressed, nil
	}
	out := transport.Outbound{
		ChatID:  link.UserID,
		Content: r.Content,
		Caption: r.Caption,
	}
	if _, err := e.sender.Send(ctx, out); err != nil {
		e.logger.Error("deliver reply failed",
			zap.Int64("ticket_id", link.TicketID), zap.Int64("user_id", link.UserID), zap.Error(err))
		return OutcomeDeliveryFailure, nil
	}
	return OutcomeDelivered, nil
}

// HandleCommand выполняет команду оператора в чате поддержки.
func (e *Engine) HandleCommand(ctx context.Context, cmd *transport.ControlCommand) (Outcome, error) {
	if !e.inScope(cmd.Scope) {
		return OutcomePolicyDrop, nil
	}
	switch cmd.Name {
	case transport.CommandOpenTickets:
		return e.cmdOpenTickets(ctx, cmd)
	case transport.CommandClose:
		return e.cmdSetStatus(ctx, cmd, model.TicketStatusClosed)
	case transport.CommandReopen:
		return e.cmdSetStatus(ctx, cmd, model.TicketStatusOpen)
	case transport.CommandTicketInfo:
		return e.cmdTicketInfo(ctx, cmd)
	default:
		return OutcomePolicyDrop, nil
	}
}

// resolveCommandTicket находит тикет, на сообщение которого ответил оператор.
// При неудаче отвечает оператору и возвращает 0.
func (e *Engine) resolveCommandTicket(ctx context.Context, cmd *transport.ControlCommand) (int64, error) {
	if cmd.RepliedToID == 0 {
		e.replyToOperator(ctx, cmd.MessageID,
			fmt.Sprintf("Команду /%s нужно вызывать ответом на сообщение тикета.", cmd.Name))
		return 0, nil
	}
	ticketID, err := e.links.TicketOfSupportMessage(ctx, cmd.RepliedToID)
	if err != nil {
		if errors.Is(err, errs.ErrLinkNotFound) {
			e.replyToOperator(ctx, cmd.MessageID, "Не удалось определить тикет для этого сообщения.")
			return 0, nil
		}
		return 0, fmt.Errorf("resolve command target: %w", err)
	}
	return ticketID, nil
}

func (e *Engine) cmdSetStatus(ctx context.Context, cmd *transport.ControlCommand, status model.TicketStatus) (Outcome, error) {
	ticketID, err := e.resolveCommandTicket(ctx, cmd)
	if err != nil {
		return "", err
	}
	if ticketID == 0 {
		return OutcomeResolutionFailure, nil
	}
	t, err := e.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			e.replyToOperator(ctx, cmd.MessageID, "Тикет не найден в базе.")
			return OutcomeResolutionFailure, nil
		}
		return "", fmt.Errorf("get ticket: %w", err)
	}

	unlock := e.lockUser(t.UserID)
	defer unlock()

	if err := e.tickets.SetStatus(ctx, ticketID, status); err != nil {
		return "", fmt.Errorf("set status: %w", err)
	}

	if status == model.TicketStatusClosed {
		e.emit(ctx, "ticket.closed", map[string]interface{}{"ticket_id": ticketID, "user_id": t.UserID})
		e.replyToOperator(ctx, cmd.MessageID, fmt.Sprintf("✅ Тикет #%d закрыт.", ticketID))
		// Уведомление пользователя — best-effort, неудача не отменяет закрытие.
		notice := transport.Outbound{ChatID: t.UserID, Content: transport.Text("✅ Обращение завершено")}
		if _, err := e.sender.Send(ctx, notice); err != nil {
			e.logger.Warn("closure notice failed",
				zap.Int64("ticket_id", ticketID), zap.Int64("user_id", t.UserID), zap.Error(err))
		}
	} else {
		e.emit(ctx, "ticket.reopened", map[string]interface{}{"ticket_id": ticketID, "user_id": t.UserID})
		e.replyToOperator(ctx, cmd.MessageID, fmt.Sprintf("♻️ Тикет #%d снова открыт.", ticketID))
	}
	return OutcomeHandled, nil
}

func (e *Engine) cmdTicketInfo(ctx context.Context, cmd *transport.ControlCommand) (Outcome, error) {
	ticketID, err := e.resolveCommandTicket(ctx, cmd)
	if err != nil {
		return "", err
	}
	if ticketID == 0 {
		return OutcomeResolutionFailure, nil
	}
	t, err := e.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			e.replyToOperator(ctx, cmd.MessageID, "Тикет не найден в базе.")
			return OutcomeResolutionFailure, nil
		}
		return "", fmt.Errorf("get ticket: %w", err)
	}
	blocked, err := e.blocks.IsBlocked(ctx, t.UserID)
	if err != nil {
		return "", fmt.Errorf("check block: %w", err)
	}
	blockState := "нет"
	if blocked {
		blockState = "да"
	}
	text := fmt.Sprintf(
		"📄 Тикет #%d\nПользователь: %d\nСтатус: %s\nБлокировка: %s\nСоздан: %s\nОбновлён: %s",
		t.ID, t.UserID, t.Status, blockState,
		formatTime(t.CreatedAt, e.cfg.DisplayLocation),
		formatTime(t.UpdatedAt, e.cfg.DisplayLocation),
	)
	e.replyToOperator(ctx, cmd.MessageID, text)
	return OutcomeHandled, nil
}

func (e *Engine) cmdOpenTickets(ctx context.Context, cmd *transport.ControlCommand) (Outcome, error) {
	items, err := e.tickets.ListOpen(ctx, e.cfg.OpenTicketsLimit)
	if err != nil {
		return "", fmt.Errorf("list open tickets: %w", err)
	}
	if len(items) == 0 {
		e.replyToOperator(ctx, cmd.MessageID, "Открытых тикетов нет ✅")
		return OutcomeHandled, nil
	}
	e.replyToOperator(ctx, cmd.MessageID, openTicketsList(items, e.cfg.DisplayLocation))
	return OutcomeHandled, nil
}

// HandleBlockToggle переключает блокировку пользователя и объявляет результат
// в чат поддержки.
func (e *Engine) HandleBlockToggle(ctx context.Context, req *transport.BlockToggleRequest) (Outcome, error) {
	if !e.inScope(req.Scope) {
		return OutcomePolicyDrop, nil
	}

	unlock := e.lockUser(req.TargetUserID)
	defer unlock()

	nowBlocked, err := e.blocks.Toggle(ctx, req.TargetUserID, req.IssuerID)
	if err != nil {
		return "", fmt.Errorf("toggle block: %w", err)
	}
	e.emit(ctx, "user.block_toggled", map[string]interface{}{
		"user_id": req.TargetUserID,
		"blocked": nowBlocked,
	})

	identity := fmt.Sprintf("%d", req.TargetUserID)
	if t, err := e.tickets.LatestByUser(ctx, req.TargetUserID); err == nil {
		identity = blockIdentity(t)
	} else if !errors.Is(err, errs.ErrTicketNotFound) {
		return "", fmt.Errorf("latest ticket: %w", err)
	}

	text := fmt.Sprintf("✅ Пользователь %s разблокирован.", identity)
	if nowBlocked {
		text = fmt.Sprintf("⛔️ Пользователь %s заблокирован.", identity)
	}
	out := transport.Outbound{
		ChatID:  e.cfg.SupportChatID,
		TopicID: e.cfg.SupportTopicID,
		Content: transport.Text(text),
	}
	if _, err := e.sender.Send(ctx, out); err != nil {
		e.logger.Warn("block toggle announce failed",
			zap.Int64("user_id", req.TargetUserID), zap.Error(err))
	}
	return OutcomeHandled, nil
}

// HandleUserCommand отвечает на сервисные команды пользователя в личном чате.
// Тикеты при этом не создаются.
func (e *Engine) HandleUserCommand(ctx context.Context, cmd *transport.UserCommand) (Outcome, error) {
	var text string
	switch cmd.Name {
	case "start":
		text = startText
	case "help":
		text = helpText
	default:
		return OutcomePolicyDrop, nil
	}
	out := transport.Outbound{ChatID: cmd.ChatID, Content: transport.Text(text)}
	if _, err := e.sender.Send(ctx, out); err != nil {
		e.logger.Warn("user command reply failed", zap.Int64("user_id", cmd.ChatID), zap.Error(err))
		return OutcomeDeliveryFailure, nil
	}
	return OutcomeHandled, nil
}

// replyToOperator отправляет оператору ответ в чат поддержки, неудача только
// логируется.
func (e *Engine) replyToOperator(ctx context.Context, replyTo int64, text string) {
	out := transport.Outbound{
		ChatID:  e.cfg.SupportChatID,
		TopicID: e.cfg.SupportTopicID,
		ReplyTo: replyTo,
		Content: transport.Text(text),
	}
	if _, err := e.sender.Send(ctx, out); err != nil {
		e.logger.Warn("operator reply failed", zap.Error(err))
	}
}
