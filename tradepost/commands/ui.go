package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"

	"github.com/tradepost/tradepost-bot/tradepost/auction"
	"github.com/tradepost/tradepost-bot/tradepost/giveaway"
)

const (
	colorSale      = 0x2ECC71
	colorSold      = 0xE67E22
	colorGiveaway  = 0x9B59B6
	colorCelebrate = 0xF1C40F
)

func auctionEmbed(minPrice, maxPrice float64, accountDetails, media string) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("🏷️ New Sale").
		SetDescription("Press the button below to place your offer.").
		AddField("Price Range", fmt.Sprintf("**%.2f** – **%.2f**", minPrice, maxPrice), true).
		SetColor(colorSale).
		SetTimestamp(time.Now())

	if accountDetails != "" {
		builder.AddField("Details", accountDetails, false)
	}
	if media != "" {
		builder.SetImage(media)
	}
	return builder.Build()
}

func offerButton() discord.ContainerComponent {
	return discord.NewActionRow(
		discord.NewPrimaryButton("💰 Make Offer", "/offers/button"),
	)
}

func finalizedEmbed(result *auction.FinalizeResult) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("✅ Sale Finalized").
		SetColor(colorSold).
		SetTimestamp(time.Now())

	if result.Auction.HasOffer() {
		builder.SetDescription(fmt.Sprintf("Sold to <@%s> for **%.2f**.",
			result.Auction.WinnerID, result.Auction.CurrentOffer))
	} else {
		builder.SetDescription(fmt.Sprintf("Sold to <@%s> with no recorded offers.",
			result.Auction.WinnerID))
	}
	return builder.Build()
}

const offersPerPage = 10

func offerHistoryPage(result *auction.FinalizeResult, page int, embed *discord.EmbedBuilder) {
	start := page * offersPerPage
	end := start + offersPerPage
	if end > len(result.Offers) {
		end = len(result.Offers)
	}

	var description strings.Builder
	if result.Auction.HasOffer() {
		fmt.Fprintf(&description, "Winner: <@%s> at **%.2f**\n\n",
			result.Auction.WinnerID, result.Auction.CurrentOffer)
	} else if result.Auction.WinnerID != "" {
		fmt.Fprintf(&description, "Winner: <@%s>\n\n", result.Auction.WinnerID)
	}
	for i, offer := range result.Offers[start:end] {
		fmt.Fprintf(&description, "`%2d.` **%.2f** by %s <t:%d:R>\n",
			start+i+1, offer.Amount, offer.UserName, offer.CreatedAt.Unix())
	}
	if len(result.Offers) == 0 {
		description.WriteString("No offers were placed.")
	}

	embed.SetTitle("📜 Offer History").
		SetDescription(description.String()).
		SetColor(colorSold)
}

func giveawayButtons(participantCount int) discord.ContainerComponent {
	return discord.NewActionRow(
		discord.NewSuccessButton(fmt.Sprintf("🎉 Join (%d)", participantCount), "/giveaway/join"),
		discord.NewDangerButton("Leave", "/giveaway/leave"),
	)
}

func closureEmbed(result *giveaway.ClosureResult) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("🎊 Giveaway Ended").
		SetColor(colorCelebrate).
		SetTimestamp(time.Now())

	if len(result.Winners) == 0 {
		builder.SetDescription(fmt.Sprintf("**%s** ended with no participants.", result.Giveaway.Prize))
		return builder.Build()
	}

	var description strings.Builder
	for _, w := range result.Winners {
		fmt.Fprintf(&description, "🏆 <@%s> won **%s**\n", w.UserID, w.Prize)
	}
	fmt.Fprintf(&description, "\n%d participants entered.", result.ParticipantCount)
	builder.SetDescription(description.String())
	return builder.Build()
}

func celebrationContent(result *giveaway.ClosureResult) string {
	if len(result.Winners) == 0 {
		return fmt.Sprintf("The giveaway for **%s** ended with no participants.", result.Giveaway.Prize)
	}

	mentions := make([]string, 0, len(result.Winners))
	for _, w := range result.Winners {
		mentions = append(mentions, fmt.Sprintf("<@%s>", w.UserID))
	}
	return fmt.Sprintf("Congratulations %s! 🎉 You won **%s**!",
		strings.Join(mentions, ", "), result.Giveaway.Prize)
}
