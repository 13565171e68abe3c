package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"agromarket/internal/documents"
	"agromarket/internal/models"
	"agromarket/internal/validation"
	"agromarket/pkg/rabbitmq"
)

// Routing keys on the events exchange.
const (
	RouteEmail        = "notify.email"
	RouteWhatsApp     = "notify.whatsapp"
	RouteOrderCreated = "order.created"
	RouteOrderStatus  = "order.status_changed"
	RouteRegistration = "registration.received"
	RouteChatbot      = "chatbot.inbound"
)

// Publisher is implemented by *rabbitmq.Client.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// EmailMessage is consumed from notify.email.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WhatsAppMessage is consumed from notify.whatsapp.
type WhatsAppMessage struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// NotificationService publishes best-effort notifications. Nothing it does can
// fail the caller: errors are logged and dropped.
type NotificationService struct {
	publisher Publisher
	wg        sync.WaitGroup
}

func NewNotificationService(publisher Publisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

// Publish marshals payload and sends it on its own goroutine.
func (s *NotificationService) Publish(routingKey string, payload interface{}) {
	if s.publisher == nil {
		log.Printf("RabbitMQ client is not initialized. Skipping %s message.", routingKey)
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", routingKey, err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.publisher.Publish(rabbitmq.Exchange, routingKey, body); err != nil {
			log.Printf("Warning: failed to publish %s: %v", routingKey, err)
		}
	}()
}

// PublishNow sends payload on the caller's goroutine and reports the outcome.
// It returns ErrNoPublisher when no broker is configured.
func (s *NotificationService) PublishNow(routingKey string, payload interface{}) error {
	if s.publisher == nil {
		return ErrNoPublisher
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", routingKey, err)
	}
	return s.publisher.Publish(rabbitmq.Exchange, routingKey, body)
}

// Wait blocks until in-flight publishes finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) Email(to, subject, body string) {
	if to == "" {
		return
	}
	s.Publish(RouteEmail, EmailMessage{To: to, Subject: subject, Body: body})
}

func (s *NotificationService) WhatsApp(to, text string) {
	if to == "" {
		return
	}
	s.Publish(RouteWhatsApp, WhatsAppMessage{To: validation.NormalizePhone(to), Text: text})
}

// OrderCreated tells the customer how to pay and emits the order event.
func (s *NotificationService) OrderCreated(order *models.Order, user *models.User) {
	s.Publish(RouteOrderCreated, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"status":       order.Status,
		"total":        order.TotalAmount,
	})
	if user == nil {
		return
	}
	text := fmt.Sprintf("Pedido %s recebido. Total %s via %s. As instruções de pagamento estão disponíveis no portal.",
		order.OrderNumber, documents.FormatBRL(order.TotalAmount), order.PaymentMethod)
	s.Email(user.Email, "Pedido "+order.OrderNumber+" recebido", text)
	s.WhatsApp(user.Phone, text)
}

// OrderStatusChanged informs the customer of a new order status.
func (s *NotificationService) OrderStatusChanged(order *models.Order, user *models.User) {
	s.Publish(RouteOrderStatus, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	})
	if user == nil {
		return
	}
	text := fmt.Sprintf("Pedido %s: status atualizado para %s.", order.OrderNumber, order.Status)
	s.Email(user.Email, "Pedido "+order.OrderNumber+" atualizado", text)
	s.WhatsApp(user.Phone, text)
}

// RegistrationReceived alerts admins that an account awaits review.
func (s *NotificationService) RegistrationReceived(user *models.User, admins []models.User) {
	s.Publish(RouteRegistration, map[string]interface{}{
		"user_id":      user.ID,
		"company_name": user.CompanyName,
		"email":        user.Email,
	})
	for _, a := range admins {
		s.Email(a.Email, "Novo cadastro aguardando aprovação",
			fmt.Sprintf("%s (%s) solicitou acesso.", user.CompanyName, user.Email))
	}
}

// AccountReviewed tells the applicant the outcome of the review.
func (s *NotificationService) AccountReviewed(user *models.User) {
	text := "Seu cadastro foi aprovado. Você já pode acessar o portal."
	if user.Status == models.UserStatusRejected {
		text = "Seu cadastro não foi aprovado. Entre em contato com nosso time comercial."
	}
	s.Email(user.Email, "Resultado do cadastro", text)
	s.WhatsApp(user.Phone, text)
}

// TextSender is implemented by *whatsapp.Client.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// WhatsAppDeliveryHandler consumes notify.whatsapp and sends through the Cloud API.
func WhatsAppDeliveryHandler(sender TextSender) func(body []byte) error {
	return func(body []byte) error {
		var msg WhatsAppMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("invalid whatsapp message: %w", err)
		}
		return sender.SendText(context.Background(), msg.To, msg.Text)
	}
}

// EmailDeliveryHandler consumes notify.email and logs each message. Delivery
// itself is done by the SMTP relay, which runs outside this service.
func EmailDeliveryHandler() func(body []byte) error {
	return func(body []byte) error {
		var msg EmailMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("invalid email message: %w", err)
		}
		log.Printf("Email queued for %s: %s", msg.To, msg.Subject)
		return nil
	}
}
