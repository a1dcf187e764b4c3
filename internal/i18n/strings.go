package i18n

import "golang.org/x/text/language"

const (
	KeySignedInAs        = "auth.signed_in_as"
	KeySignedOut         = "auth.signed_out"
	KeyNotSignedIn       = "auth.not_signed_in"
	KeyAccountCreated    = "auth.account_created"
	KeyCodeSent          = "auth.code_sent"
	KeyCodeVerified      = "auth.code_verified"
	KeySecondFactor      = "auth.second_factor_required"
	KeyTwoFactorEnrolled = "twofactor.enrolled"
	KeyTwoFactorScan     = "twofactor.scan"
	KeyTwoFactorEnabled  = "twofactor.enabled"
	KeyTwoFactorDisabled = "twofactor.disabled"
	KeyProfileUsername   = "profile.username"
	KeyProfileRole       = "profile.role"
	KeyProfileLanguage   = "profile.language"
	KeyProfileUpdated    = "profile.updated"
	KeyChatPrompt        = "chat.prompt"
	KeyUnexpectedError   = "error.unexpected"
)

var tables = map[language.Tag]map[string]string{
	language.English: {
		KeySignedInAs:        "Signed in as %s",
		KeySignedOut:         "Signed out",
		KeyNotSignedIn:       "You are not signed in",
		KeyAccountCreated:    "Account created for %s",
		KeyCodeSent:          "A 6-digit code was sent to %s. It expires in 10 minutes.",
		KeyCodeVerified:      "Code verified",
		KeySecondFactor:      "Enter the code from your authenticator app",
		KeyTwoFactorEnrolled: "Two-factor secret: %s",
		KeyTwoFactorScan:     "Add this URI to your authenticator app: %s",
		KeyTwoFactorEnabled:  "Two-factor authentication enabled",
		KeyTwoFactorDisabled: "Two-factor authentication disabled",
		KeyProfileUsername:   "Username",
		KeyProfileRole:       "Role",
		KeyProfileLanguage:   "Language",
		KeyProfileUpdated:    "Profile updated",
		KeyChatPrompt:        "Ask a security question",
		KeyUnexpectedError:   "An unexpected error occurred. Please try again.",
	},
	language.Burmese: {
		KeySignedInAs:        "%s အဖြစ် ဝင်ရောက်ထားသည်",
		KeySignedOut:         "ထွက်ပြီးပါပြီ",
		KeyNotSignedIn:       "သင် ဝင်ရောက်ထားခြင်း မရှိပါ",
		KeyAccountCreated:    "%s အတွက် အကောင့် ဖန်တီးပြီးပါပြီ",
		KeyCodeSent:          "ဂဏန်း ၆ လုံးပါ ကုဒ်ကို %s သို့ ပို့ပြီးပါပြီ။ ၁၀ မိနစ်အတွင်း သက်တမ်းကုန်ပါမည်။",
		KeyCodeVerified:      "ကုဒ် အတည်ပြုပြီးပါပြီ",
		KeySecondFactor:      "Authenticator app မှ ကုဒ်ကို ထည့်ပါ",
		KeyTwoFactorEnrolled: "နှစ်ဆင့်အတည်ပြု လျှို့ဝှက်ချက်: %s",
		KeyTwoFactorScan:     "ဤ URI ကို authenticator app တွင် ထည့်ပါ: %s",
		KeyTwoFactorEnabled:  "နှစ်ဆင့်အတည်ပြုခြင်း ဖွင့်ပြီးပါပြီ",
		KeyTwoFactorDisabled: "နှစ်ဆင့်အတည်ပြုခြင်း ပိတ်ပြီးပါပြီ",
		KeyProfileUsername:   "အသုံးပြုသူအမည်",
		KeyProfileRole:       "အခန်းကဏ္ဍ",
		KeyProfileLanguage:   "ဘာသာစကား",
		KeyProfileUpdated:    "ပရိုဖိုင် ပြင်ဆင်ပြီးပါပြီ",
		KeyChatPrompt:        "လုံခြုံရေးဆိုင်ရာ မေးခွန်း မေးပါ",
		KeyUnexpectedError:   "မမျှော်လင့်ထားသော အမှားတစ်ခု ဖြစ်ပွားခဲ့သည်။ ထပ်မံ ကြိုးစားပါ။",
	},
}
