package cache

// Key builders for every purpose namespace in the code store.

func OTPKey(phone string) string {
	return "otp-phone-" + phone
}

func PendingRegistrationKey(email string) string {
	return "new_user:" + email
}

func PasswordResetKey(identifier string) string {
	return "password_reset_" + identifier
}

func EmailChangeKey(userID, email string) string {
	return "user:" + userID + "-email-change-" + email
}

func PhoneChangeKey(userID, phone string) string {
	return "user:" + userID + "-phone-change-" + phone
}

func OAuthStateKey(state string) string {
	return "oauth-state-" + state
}
