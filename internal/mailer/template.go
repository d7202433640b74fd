package mailer

import "fmt"

// otpEmailBody renders the OTP email. The code is valid for 10 minutes; the
// copy states that so users don't retry stale codes.
func otpEmailBody(heading, code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="margin:0;padding:0;background-color:#f4f4f7;font-family:Arial,Helvetica,sans-serif;">
    <table role="presentation" width="100%%" cellpadding="0" cellspacing="0">
      <tr>
        <td align="center" style="padding:40px 0;">
          <table role="presentation" width="480" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
            <tr>
              <td align="center" style="font-size:20px;font-weight:bold;color:#1a1a2e;padding-bottom:16px;">%s</td>
            </tr>
            <tr>
              <td align="center" style="font-size:14px;color:#51545e;padding-bottom:24px;">
                Use the verification code below to continue. It expires in 10 minutes.
              </td>
            </tr>
            <tr>
              <td align="center">
                <span style="display:inline-block;font-size:32px;letter-spacing:8px;font-weight:bold;color:#1a1a2e;background:#f4f4f7;border-radius:6px;padding:12px 24px;">%s</span>
              </td>
            </tr>
            <tr>
              <td align="center" style="font-size:12px;color:#9a9ea6;padding-top:24px;">
                If you did not request this code, you can safely ignore this email.
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>`, heading, code)
}
