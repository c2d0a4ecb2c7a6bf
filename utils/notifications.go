package utils

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"google.golang.org/api/option"
)

// NotificationService delivers emergency pushes over FCM with a Twilio
// SMS fallback for officers without a registered device token.
type NotificationService struct {
	fcmClient    *messaging.Client
	twilioClient *twilio.RestClient
	twilioNumber string
}

type PushNotification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
	Sound string            `json:"sound,omitempty"`
}

type SMSMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type NotificationResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

func NewNotificationService(firebaseCredentials, twilioSID, twilioToken, twilioNumber string) (*NotificationService, error) {
	ns := &NotificationService{twilioNumber: twilioNumber}

	if firebaseCredentials != "" {
		opt := option.WithCredentialsFile(firebaseCredentials)
		app, err := firebase.NewApp(context.Background(), nil, opt)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
		}

		fcmClient, err := app.Messaging(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize FCM client: %v", err)
		}
		ns.fcmClient = fcmClient
	}

	if twilioSID != "" {
		ns.twilioClient = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: twilioSID,
			Password: twilioToken,
		})
	}

	return ns, nil
}

// SendPushNotification delivers one push over FCM.
func (ns *NotificationService) SendPushNotification(ctx context.Context, deviceToken string, notification PushNotification) (*NotificationResult, error) {
	if ns.fcmClient == nil {
		return &NotificationResult{Success: false, Error: "FCM not configured"}, nil
	}

	message := &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:       notification.Sound,
				ChannelID:   "emergency",
				Priority:    messaging.PriorityMax,
				ClickAction: "FLUTTER_NOTIFICATION_CLICK",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: notification.Sound,
					Alert: &messaging.ApsAlert{
						Title: notification.Title,
						Body:  notification.Body,
					},
				},
			},
		},
	}

	messageID, err := ns.fcmClient.Send(ctx, message)
	if err != nil {
		return &NotificationResult{Success: false, Error: err.Error()}, err
	}

	return &NotificationResult{Success: true, MessageID: messageID}, nil
}

// SendSMS delivers one SMS over Twilio.
func (ns *NotificationService) SendSMS(ctx context.Context, sms SMSMessage) (*NotificationResult, error) {
	if ns.twilioClient == nil {
		return &NotificationResult{Success: false, Error: "Twilio not configured"}, nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(sms.To)
	params.SetFrom(ns.twilioNumber)
	params.SetBody(sms.Message)

	resp, err := ns.twilioClient.Api.CreateMessage(params)
	if err != nil {
		return &NotificationResult{Success: false, Error: err.Error()}, err
	}

	result := &NotificationResult{Success: true}
	if resp.Sid != nil {
		result.MessageID = *resp.Sid
	}
	return result, nil
}
