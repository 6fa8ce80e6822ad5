package i18n

import (
	"golang.org/x/text/language"
)

// Message keys.
const (
	SSHAgentUnlockRequired        = "sshAgentUnlockRequired"
	SSHAgentUnlockRequiredMessage = "sshAgentUnlockRequiredMessage"
	SSHAgentUnlockTimeout         = "sshAgentUnlockTimeout"
	SSHAgentUnlockTimeoutMessage  = "sshAgentUnlockTimeoutMessage"
	UnknownApplication            = "unknownApplication"
	SSHAgentApproveTitle          = "sshAgentApproveTitle"
	SSHAgentApproveAuth           = "sshAgentApproveAuth"
	SSHAgentApproveGitSign        = "sshAgentApproveGitSign"
	SSHAgentApproveSign           = "sshAgentApproveSign"
	SSHAgentForwardedWarning      = "sshAgentForwardedWarning"
	SSHAgentApproveQuestion       = "sshAgentApproveQuestion"
)

var translations = map[language.Tag]map[string]string{
	language.English: {
		SSHAgentUnlockRequired:        "Unlock required",
		SSHAgentUnlockRequiredMessage: "Unlock your vault to approve the SSH key request.",
		SSHAgentUnlockTimeout:         "Unlock timed out",
		SSHAgentUnlockTimeoutMessage:  "The SSH key request was denied because the vault was not unlocked in time.",
		UnknownApplication:            "unknown",
		SSHAgentApproveTitle:          "Confirm SSH key use",
		SSHAgentApproveAuth:           "%[1]s wants to authenticate with the SSH key %[2]q.",
		SSHAgentApproveGitSign:        "%[1]s wants to sign a git commit with the SSH key %[2]q.",
		SSHAgentApproveSign:           "%[1]s wants to sign %[3]s data with the SSH key %[2]q.",
		SSHAgentForwardedWarning:      "This request comes from a forwarded agent on a remote host.",
		SSHAgentApproveQuestion:       "Allow this request?",
	},
	language.German: {
		SSHAgentUnlockRequired:        "Entsperren erforderlich",
		SSHAgentUnlockRequiredMessage: "Entsperre deinen Tresor, um die SSH-Schlüsselanfrage zu bestätigen.",
		SSHAgentUnlockTimeout:         "Zeitüberschreitung beim Entsperren",
		SSHAgentUnlockTimeoutMessage:  "Die SSH-Schlüsselanfrage wurde abgelehnt, weil der Tresor nicht rechtzeitig entsperrt wurde.",
		UnknownApplication:            "unbekannt",
		SSHAgentApproveTitle:          "SSH-Schlüssel verwenden",
		SSHAgentApproveAuth:           "%[1]s möchte sich mit dem SSH-Schlüssel %[2]q anmelden.",
		SSHAgentApproveGitSign:        "%[1]s möchte einen Git-Commit mit dem SSH-Schlüssel %[2]q signieren.",
		SSHAgentApproveSign:           "%[1]s möchte %[3]s-Daten mit dem SSH-Schlüssel %[2]q signieren.",
		SSHAgentForwardedWarning:      "Diese Anfrage kommt von einem weitergeleiteten Agenten auf einem entfernten Host.",
		SSHAgentApproveQuestion:       "Diese Anfrage erlauben?",
	},
	language.Dutch: {
		SSHAgentUnlockRequired:        "Ontgrendelen vereist",
		SSHAgentUnlockRequiredMessage: "Ontgrendel je kluis om het SSH-sleutelverzoek goed te keuren.",
		SSHAgentUnlockTimeout:         "Ontgrendelen verlopen",
		SSHAgentUnlockTimeoutMessage:  "Het SSH-sleutelverzoek is geweigerd omdat de kluis niet op tijd is ontgrendeld.",
		UnknownApplication:            "onbekend",
		SSHAgentApproveTitle:          "SSH-sleutel gebruiken",
		SSHAgentApproveAuth:           "%[1]s wil inloggen met de SSH-sleutel %[2]q.",
		SSHAgentApproveGitSign:        "%[1]s wil een git-commit ondertekenen met de SSH-sleutel %[2]q.",
		SSHAgentApproveSign:           "%[1]s wil %[3]s-gegevens ondertekenen met de SSH-sleutel %[2]q.",
		SSHAgentForwardedWarning:      "Dit verzoek komt van een doorgestuurde agent op een externe host.",
		SSHAgentApproveQuestion:       "Dit verzoek toestaan?",
	},
}
