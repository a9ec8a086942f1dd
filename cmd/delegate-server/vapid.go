package main

import (
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
)

func generateVAPIDKeys() error {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	fmt.Printf("DELEGATE_VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("DELEGATE_VAPID_PRIVATE_KEY=%s\n", privateKey)
	return nil
}
