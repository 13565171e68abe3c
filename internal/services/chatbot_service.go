package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"agromarket/internal/documents"
	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/validation"
	"agromarket/pkg/whatsapp"
)

var orderNumberPattern = regexp.MustCompile(`(?i)\bORD-\d{8}-\d{4,}\b`)

const chatbotMenu = "Olá! Sou o assistente da AgroMarket.\n" +
	"1 - Ver catálogo e preços\n" +
	"Ou envie o número do seu pedido (ex.: ORD-20260101-0001) para consultar o status."

var statusLabels = map[models.OrderStatus]string{
	models.OrderStatusPending:        "aguardando pagamento",
	models.OrderStatusPaid:           "pago",
	models.OrderStatusProcessing:     "em separação",
	models.OrderStatusReadyForPickup: "pronto para retirada",
	models.OrderStatusCompleted:      "concluído",
	models.OrderStatusCancelled:      "cancelado",
}

// ChatbotService answers inbound WhatsApp messages.
type ChatbotService struct {
	orders   repositories.OrderRepository
	users    repositories.UserRepository
	products repositories.ProductRepository
	notifier *NotificationService
}

// NewChatbotService creates a new ChatbotService.
func NewChatbotService(orders repositories.OrderRepository, users repositories.UserRepository,
	products repositories.ProductRepository, notifier *NotificationService) *ChatbotService {
	if notifier == nil {
		notifier = NewNotificationService(nil)
	}
	return &ChatbotService{orders: orders, users: users, products: products, notifier: notifier}
}

// Reply builds the answer to one inbound message.
func (s *ChatbotService) Reply(ctx context.Context, msg whatsapp.InboundMessage) (string, error) {
	text := strings.TrimSpace(msg.Text)

	if number := orderNumberPattern.FindString(text); number != "" {
		return s.orderStatus(ctx, strings.ToUpper(number), msg.From)
	}

	switch strings.ToLower(text) {
	case "1", "catalogo", "catálogo":
		return s.catalog(ctx)
	}
	return chatbotMenu, nil
}

func (s *ChatbotService) orderStatus(ctx context.Context, number, from string) (string, error) {
	notFound := fmt.Sprintf("Não encontramos o pedido %s vinculado a este número.", number)

	order, err := s.orders.GetByOrderNumber(ctx, number)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFound, nil
	}
	if err != nil {
		return "", err
	}
	owner, err := s.users.GetByID(ctx, order.UserID)
	if err != nil || validation.NormalizePhone(owner.Phone) != validation.NormalizePhone(from) {
		return notFound, nil
	}

	label, ok := statusLabels[order.Status]
	if !ok {
		label = string(order.Status)
	}
	return fmt.Sprintf("Pedido %s: %s. Total %s.", order.OrderNumber, label, documents.FormatBRL(order.TotalAmount)), nil
}

func (s *ChatbotService) catalog(ctx context.Context) (string, error) {
	products, err := s.products.GetAll(ctx, true)
	if err != nil {
		return "", err
	}
	if len(products) == 0 {
		return "Nenhum produto disponível no momento.", nil
	}
	var b strings.Builder
	b.WriteString("Catálogo AgroMarket:\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s: de %s a %s por %s\n", p.Name,
			documents.FormatBRL(p.MaxPrice), documents.FormatBRL(p.MinPrice), p.Unit)
	}
	b.WriteString("Quanto maior o volume, menor o preço.")
	return b.String(), nil
}

// Handle consumes chatbot.inbound.
func (s *ChatbotService) Handle(body []byte) error {
	var msg whatsapp.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("invalid chatbot message: %w", err)
	}
	reply, err := s.Reply(context.Background(), msg)
	if err != nil {
		log.Printf("Chatbot could not answer %s: %v", msg.MessageID, err)
		return err
	}
	s.notifier.WhatsApp(msg.From, reply)
	return nil
}
