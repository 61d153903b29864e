package httpapi

import (
	"net/http"

	"github.com/MrEthical07/donorhub/donations"
	"github.com/labstack/echo/v4"
)

type createDonationRequest struct {
	Amount        float64 `json:"amount"`
	Type          string  `json:"type"`
	PaymentMethod string  `json:"paymentMethod"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
}

type donationResponse struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message,omitempty"`
	Donation *donations.Donation `json:"donation"`
}

func (a *API) createDonation(c echo.Context) error {
	var req createDonationRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	d, err := a.donations.Create(c.Request().Context(), donations.Input{
		Amount:        req.Amount,
		Type:          req.Type,
		PaymentMethod: req.PaymentMethod,
		Email:         req.Email,
		Name:          req.Name,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, donationResponse{
		Success:  true,
		Message:  "Donation recorded successfully",
		Donation: d,
	})
}

type donationListResponse struct {
	Success   bool                 `json:"success"`
	Donations []donations.Donation `json:"donations"`
}

func (a *API) listDonations(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	list, err := a.donations.ListByEmail(c.Request().Context(), id.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, donationListResponse{Success: true, Donations: list})
}
